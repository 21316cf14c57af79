// Package remote is the HTTP client for one entity's REST collection.
//
// It translates list queries and mutations into calls against
// {base}/api/{entity}/..., normalizes the response envelope and classifies
// failures as *domain.FetchError or *domain.MutationError. It keeps no state
// between calls.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/simp-lee/logger"

	"github.com/simp-lee/hrdesk/internal/domain"
)

const (
	// DefaultTimeout bounds every call unless WithTimeout or WithHTTPClient
	// overrides it.
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 10 << 20

	headerActorID   = "X-Actor-ID"
	headerRequestID = "X-Request-ID"
)

// TokenSigner issues a bearer token attributing a request to a session.
type TokenSigner interface {
	Sign(sess domain.Session) (string, error)
}

// Observer receives the outcome of every call.
type Observer interface {
	ObserveRemote(entity, op string, elapsed time.Duration, err error)
}

// Client talks to one entity's collection.
type Client struct {
	base     *url.URL
	entity   domain.Entity
	http     *http.Client
	session  domain.Session
	signer   TokenSigner
	logger   *slog.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithSession attributes mutations to the given operator.
func WithSession(sess domain.Session) Option {
	return func(c *Client) { c.session = sess }
}

// WithSigner attaches a bearer token to every request made on behalf of a
// non-anonymous session.
func WithSigner(s TokenSigner) Option {
	return func(c *Client) { c.signer = s }
}

// WithLogger sets the logger used for malformed-payload warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports call outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client for entity rooted at baseURL.
func New(baseURL string, entity domain.Entity, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: must be an absolute http(s) url", baseURL)
	}
	if err := entity.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		base:   base,
		entity: entity,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("entity", entity.Name))
	return c, nil
}

// Entity returns the entity this client serves.
func (c *Client) Entity() domain.Entity {
	return c.entity
}

// Session returns the session mutations are attributed to.
func (c *Client) Session() domain.Session {
	return c.session
}

// List fetches one page. The page number is sent 1-based. Bodies that parse
// but lack the expected shape yield an empty page and a warning, never an error.
func (c *Client) List(ctx context.Context, q domain.ListQuery) (res domain.ListResult, err error) {
	start := time.Now()
	defer func() { c.observe("list", start, err) }()

	if err := q.Validate(); err != nil {
		return domain.ListResult{}, err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page+1))
	params.Set("limit", strconv.Itoa(q.PageSize))
	for k, v := range q.Filters {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		params.Set(k, v)
	}

	endpoint := c.endpoint("list") + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ListResult{}, &domain.FetchError{Reason: "list failed", Err: err}
	}

	status, body, err := c.do(req)
	if err != nil {
		return domain.ListResult{}, &domain.FetchError{Reason: "list failed", Status: status, Err: err}
	}
	if !isSuccess(status) {
		return domain.ListResult{}, &domain.FetchError{Reason: "list failed", Status: status}
	}
	return c.decodeList(ctx, q, status, body)
}

func (c *Client) decodeList(ctx context.Context, q domain.ListQuery, status int, body []byte) (domain.ListResult, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.ListResult{}, &domain.FetchError{
			Reason: "list failed",
			Status: status,
			Err:    fmt.Errorf("decode list body: %w", err),
		}
	}

	var data map[string]json.RawMessage
	if len(envelope.Data) == 0 || json.Unmarshal(envelope.Data, &data) != nil || data == nil {
		c.logger.WarnContext(ctx, "list response has no data object")
		return domain.ListResult{Rows: []domain.Record{}}, nil
	}

	rows := c.decodeRows(ctx, data[c.entity.CollectionKey])
	if len(rows) > q.PageSize {
		c.logger.WarnContext(ctx, "list response exceeds page size, truncating",
			slog.Int("rows", len(rows)),
			slog.Int("page_size", q.PageSize),
		)
		rows = rows[:q.PageSize]
	}

	total, ok := decodeTotal(data["total"])
	if !ok {
		total = q.Offset() + len(rows)
		c.logger.WarnContext(ctx, "list response has no usable total", slog.Int("assumed_total", total))
	}
	return domain.ListResult{Rows: rows, Total: total}, nil
}

func (c *Client) decodeRows(ctx context.Context, raw json.RawMessage) []domain.Record {
	rows := []domain.Record{}
	if len(raw) == 0 {
		c.logger.WarnContext(ctx, "list response is missing collection key",
			slog.String("key", c.entity.CollectionKey),
		)
		return rows
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.WarnContext(ctx, "list collection is not an array",
			slog.String("key", c.entity.CollectionKey),
		)
		return rows
	}

	dropped := 0
	for _, item := range items {
		var rec domain.Record
		if err := json.Unmarshal(item, &rec); err != nil || rec == nil {
			dropped++
			continue
		}
		rows = append(rows, rec)
	}
	if dropped > 0 {
		c.logger.WarnContext(ctx, "dropped non-object list entries", slog.Int("dropped", dropped))
	}
	return rows
}

func decodeTotal(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil || f == nil || *f < 0 {
		return 0, false
	}
	// float64(math.MaxInt) rounds up to 2^63, which int cannot hold.
	if *f != math.Trunc(*f) || *f >= float64(math.MaxInt) {
		return 0, false
	}
	return int(*f), true
}

// Create posts a new record.
func (c *Client) Create(ctx context.Context, p domain.Payload) (domain.MutationResult, error) {
	return c.mutate(ctx, "create", http.MethodPost, c.endpoint("create"), &p)
}

// Update replaces the fields of the record with the given id.
func (c *Client) Update(ctx context.Context, id string, p domain.Payload) (domain.MutationResult, error) {
	if strings.TrimSpace(id) == "" {
		return domain.MutationResult{}, errors.New("update requires a record id")
	}
	return c.mutate(ctx, "update", http.MethodPut, c.endpoint("update", id), &p)
}

// Remove deletes the record with the given id.
func (c *Client) Remove(ctx context.Context, id string) (domain.MutationResult, error) {
	if strings.TrimSpace(id) == "" {
		return domain.MutationResult{}, errors.New("delete requires a record id")
	}
	return c.mutate(ctx, "delete", http.MethodDelete, c.endpoint("delete", id), nil)
}

// Mutate dispatches a create or update request.
func (c *Client) Mutate(ctx context.Context, r domain.MutationRequest) (domain.MutationResult, error) {
	if err := r.Validate(); err != nil {
		return domain.MutationResult{}, err
	}
	if r.Mode == domain.ModeUpdate {
		return c.Update(ctx, r.TargetID, r.Payload)
	}
	return c.Create(ctx, r.Payload)
}

func (c *Client) mutate(ctx context.Context, op, method, endpoint string, p *domain.Payload) (res domain.MutationResult, err error) {
	start := time.Now()
	defer func() { c.observe(op, start, err) }()

	var (
		body        io.Reader
		contentType string
	)
	if p != nil {
		body, contentType, err = encodePayload(*p)
		if err != nil {
			return domain.MutationResult{}, fmt.Errorf("encode %s payload: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return domain.MutationResult{}, &domain.MutationError{Message: c.failureMessage(op), Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	status, respBody, err := c.do(req)
	if err != nil {
		return domain.MutationResult{}, &domain.MutationError{Message: c.failureMessage(op), Status: status, Err: err}
	}

	parsed := parseObject(respBody)
	if !isSuccess(status) {
		msg := stringField(parsed, "message")
		if msg == "" {
			msg = c.failureMessage(op)
		}
		return domain.MutationResult{}, &domain.MutationError{Message: msg, Status: status}
	}

	res = domain.MutationResult{Success: true, Message: stringField(parsed, "message")}
	if res.Message == "" {
		res.Message = c.successMessage(op)
	}
	if op != "delete" {
		res.Record = echoedRecord(parsed)
	}
	return res, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("Accept", "application/json")
	if id := requestID(req.Context()); id != "" {
		req.Header.Set(headerRequestID, id)
	}
	if !c.session.Anonymous() {
		req.Header.Set(headerActorID, c.session.UserID)
		if c.signer != nil {
			token, err := c.signer.Sign(c.session)
			if err != nil {
				return 0, nil, fmt.Errorf("sign request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) endpoint(parts ...string) string {
	elems := append([]string{"api", c.entity.Name}, parts...)
	return c.base.JoinPath(elems...).String()
}

func (c *Client) observe(op string, start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveRemote(c.entity.Name, op, time.Since(start), err)
	}
}

func (c *Client) failureMessage(op string) string {
	return fmt.Sprintf("Failed to %s %s", op, strings.ToLower(c.entity.Singular))
}

func (c *Client) successMessage(op string) string {
	return fmt.Sprintf("%s %sd", c.entity.Singular, strings.TrimSuffix(op, "e"))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func parseObject(body []byte) map[string]any {
	var m map[string]any
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &m) != nil {
		return nil
	}
	return m
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// echoedRecord prefers a "data" object and otherwise treats the body minus
// envelope keys as the record.
func echoedRecord(body map[string]any) domain.Record {
	if body == nil {
		return nil
	}
	if data, ok := body["data"].(map[string]any); ok {
		return domain.Record(data)
	}
	rec := make(domain.Record, len(body))
	for k, v := range body {
		switch k {
		case "message", "code", "data":
			continue
		}
		rec[k] = v
	}
	if len(rec) == 0 {
		return nil
	}
	return rec
}

func requestID(ctx context.Context) string {
	for _, attr := range logger.FromContext(ctx) {
		if attr.Key == "request_id" {
			return attr.Value.String()
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
