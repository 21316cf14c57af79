package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/hrdesk/internal/catalog"
	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
	"github.com/simp-lee/hrdesk/internal/middleware"
)

// defaultOverviewConcurrency caps the concurrent total fetches of the overview.
const defaultOverviewConcurrency = 4

// Backend is the remote collection of one entity.
type Backend interface {
	crud.Lister
	crud.Mutator
	crud.Remover
}

// BackendFor returns the collection client for an entity.
type BackendFor func(e domain.Entity) (Backend, error)

// PageDeps holds what the page handler needs.
type PageDeps struct {
	Catalog   *catalog.Catalog
	Backends  BackendFor
	Session   domain.Session
	Validator *crud.Validator
	Confirm   *ConfirmTokens
	Logger    *slog.Logger
	// OverviewConcurrency limits parallel requests on the overview page.
	OverviewConcurrency int
}

// PageHandler renders the dashboard pages and serves their htmx fragments.
// Controllers are built per request from the state the page sends back.
type PageHandler struct {
	catalog     *catalog.Catalog
	backends    BackendFor
	session     domain.Session
	validator   *crud.Validator
	confirm     *ConfirmTokens
	logger      *slog.Logger
	concurrency int
	nav         []entityLink
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(deps PageDeps) (*PageHandler, error) {
	if deps.Catalog == nil {
		return nil, errors.New("dashboard: catalog is required")
	}
	if deps.Backends == nil {
		return nil, errors.New("dashboard: backend factory is required")
	}
	if deps.Confirm == nil {
		return nil, errors.New("dashboard: confirm tokens are required")
	}
	h := &PageHandler{
		catalog:     deps.Catalog,
		backends:    deps.Backends,
		session:     deps.Session,
		validator:   deps.Validator,
		confirm:     deps.Confirm,
		logger:      deps.Logger,
		concurrency: deps.OverviewConcurrency,
	}
	if h.validator == nil {
		h.validator = crud.NewValidator()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.concurrency < 1 {
		h.concurrency = defaultOverviewConcurrency
	}
	for _, e := range deps.Catalog.All() {
		h.nav = append(h.nav, newEntityLink(e))
	}
	return h, nil
}

// Overview renders the landing page with the record total of every entity.
// GET /
func (h *PageHandler) Overview(c *gin.Context) {
	entities := h.catalog.All()
	cards := make([]entityCard, len(entities))

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(h.concurrency)
	for i, e := range entities {
		g.Go(func() error {
			card := entityCard{entityLink: newEntityLink(e)}
			backend, err := h.backends(e)
			if err == nil {
				var res domain.ListResult
				res, err = backend.List(ctx, domain.ListQuery{Page: 0, PageSize: 1})
				card.Total = res.Total
			}
			if err != nil {
				h.logger.WarnContext(ctx, "overview total failed",
					slog.String("entity", e.Name),
					slog.String("error", err.Error()),
				)
				card.Error = e.ListErrorMessage
			}
			cards[i] = card
			return nil
		})
	}
	_ = g.Wait()

	c.HTML(http.StatusOK, "dashboard/overview.html", gin.H{
		"Nav":       h.nav,
		"Cards":     cards,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// ListPage renders the full page of one entity.
// GET /:entity
func (h *PageHandler) ListPage(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	toasts := &crud.Recorder{}
	st := h.loadList(c, entity, backend, toasts)

	c.HTML(http.StatusOK, "dashboard/list.html", gin.H{
		"Nav":       h.nav,
		"Active":    entity.Name,
		"List":      newListView(entity, st),
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// Rows renders the grid fragment. It is fetched on paging, on filter
// changes and whenever a mutation triggers recordsChanged.
// GET /:entity/rows
func (h *PageHandler) Rows(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	toasts := &crud.Recorder{}
	st := h.loadList(c, entity, backend, toasts)

	setTrigger(c, toasts, false)
	c.HTML(http.StatusOK, "dashboard/rows.html", gin.H{
		"List": newListView(entity, st),
	})
}

// NewForm renders an empty create form.
// GET /:entity/new
func (h *PageHandler) NewForm(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	form := h.newForm(entity, backend, nil, nil)
	if err := form.Open(domain.ModeCreate, nil); err != nil {
		h.renderFormError(c, err)
		return
	}
	h.renderForm(c, entity, form, nil)
}

// EditForm renders the edit form seeded from the row the grid posted back.
// POST /:entity/form
func (h *PageHandler) EditForm(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	seed, err := parseRecord(c.PostForm("record"))
	if err != nil {
		h.logger.DebugContext(c.Request.Context(), "edit form: bad record", slog.String("error", err.Error()))
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}
	form := h.newForm(entity, backend, nil, nil)
	if err := form.Open(domain.ModeUpdate, seed); err != nil {
		h.renderFormError(c, err)
		return
	}
	h.renderForm(c, entity, form, seed)
}

// Create submits the create form.
// POST /:entity
func (h *PageHandler) Create(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	h.submit(c, entity, backend, domain.ModeCreate, nil)
}

// Update submits the edit form.
// PUT /:entity/:id
func (h *PageHandler) Update(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	id, err := parseID(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}
	seed, err := parseRecord(c.PostForm("record"))
	if err != nil || seed == nil {
		seed = domain.Record{}
	}
	seed["id"] = id
	h.submit(c, entity, backend, domain.ModeUpdate, seed)
}

// ConfirmDelete puts the delete gate in its pending state for one row and
// renders the confirmation popover carrying a signed token.
// POST /:entity/:id/confirm-delete
func (h *PageHandler) ConfirmDelete(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	id, err := parseID(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}

	gate := crud.NewDeleteGate(entity, backend, crud.WithLogger(h.logger))
	if err := gate.Request(domain.Record{"id": id}, "row-"+id); err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}
	st := gate.State()

	token, err := h.confirm.Issue(entity.Name, st.TargetID)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "issue confirm token", slog.String("error", err.Error()))
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	c.HTML(http.StatusOK, "dashboard/confirm.html", gin.H{
		"Confirm": confirmView{
			Entity:   entity.Name,
			Singular: entity.Singular,
			ID:       st.TargetID,
			Anchor:   st.Anchor,
			Token:    token,
			Action:   "/" + entity.Name + "/" + url.PathEscape(st.TargetID),
		},
	})
}

// Delete confirms a pending delete. The row is only removed from the grid by
// the refetch that follows a successful delete.
// DELETE /:entity/:id
func (h *PageHandler) Delete(c *gin.Context) {
	entity, backend, ok := h.resolve(c)
	if !ok {
		return
	}
	toasts := &crud.Recorder{}

	id, err := parseID(c)
	if err != nil {
		toasts.Notify(crud.Toast{Kind: crud.ToastError, Message: "Invalid " + strings.ToLower(entity.Singular) + " id"})
		h.noSwap(c, toasts)
		return
	}

	token := c.Query("confirm_token")
	if token == "" {
		token = c.PostForm("confirm_token")
	}
	if err := h.confirm.Check(token, entity.Name, id); err != nil {
		h.logger.WarnContext(c.Request.Context(), "delete without valid confirmation",
			slog.String("entity", entity.Name),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		toasts.Notify(crud.Toast{Kind: crud.ToastError, Message: "Delete confirmation expired, please try again"})
		h.noSwap(c, toasts)
		return
	}

	changed := false
	gate := crud.NewDeleteGate(entity, backend,
		crud.WithLogger(h.logger),
		crud.WithNotifier(toasts),
		crud.WithOnSuccess(func(context.Context) { changed = true }),
	)
	if err := gate.Request(domain.Record{"id": id}, ""); err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}
	if _, err := gate.Confirm(c.Request.Context()); err != nil {
		h.noSwap(c, toasts)
		return
	}

	setTrigger(c, toasts, changed)
	c.Status(http.StatusOK)
}

func (h *PageHandler) submit(c *gin.Context, entity domain.Entity, backend Backend, mode domain.MutationMode, seed domain.Record) {
	toasts := &crud.Recorder{}
	changed := false
	form := h.newForm(entity, backend, toasts, func(context.Context) { changed = true })
	if err := form.Open(mode, seed); err != nil {
		h.renderFormError(c, err)
		return
	}

	sub, err := h.readSubmission(c, entity)
	if err != nil {
		h.logger.DebugContext(c.Request.Context(), "submit: read form", slog.String("error", err.Error()))
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}

	if _, err := form.Submit(c.Request.Context(), sub); err != nil {
		// Field errors and rejected mutations both re-render the open form.
		setTrigger(c, toasts, false)
		h.renderForm(c, entity, form, seed)
		return
	}

	setTrigger(c, toasts, changed)
	c.Status(http.StatusOK)
}

func (h *PageHandler) newForm(entity domain.Entity, backend Backend, toasts crud.Notifier, onSuccess func(context.Context)) *crud.FormController {
	opts := []crud.Option{
		crud.WithLogger(h.logger),
		crud.WithSession(h.session),
		crud.WithValidator(h.validator),
		crud.WithOnSuccess(onSuccess),
	}
	if toasts != nil {
		opts = append(opts, crud.WithNotifier(toasts))
	}
	return crud.NewFormController(entity, backend, opts...)
}

func (h *PageHandler) renderForm(c *gin.Context, entity domain.Entity, form *crud.FormController, seed domain.Record) {
	c.HTML(http.StatusOK, "dashboard/form.html", gin.H{
		"Form": newFormView(entity, form.State(), seed),
	})
}

func (h *PageHandler) renderFormError(c *gin.Context, err error) {
	h.logger.DebugContext(c.Request.Context(), "open form", slog.String("error", err.Error()))
	c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
}

// loadList rebuilds the list controller from the query string. The filter
// form sends the filters it was rendered with as "applied", so a changed
// filter goes back to the first page while paging keeps the filters.
func (h *PageHandler) loadList(c *gin.Context, entity domain.Entity, backend Backend, toasts crud.Notifier) crud.ListState {
	ctx := c.Request.Context()
	list := crud.NewListController(entity, backend,
		crud.WithLogger(h.logger),
		crud.WithNotifier(toasts),
	)

	page := 0
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 1 {
		page = n - 1
	}
	filters := make(map[string]string)
	for _, key := range entity.FilterKeys() {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			filters[key] = v
		}
	}

	if raw, ok := c.GetQuery("applied"); ok {
		applied, _ := url.ParseQuery(raw)
		prev := make(map[string]string, len(applied))
		for k := range applied {
			prev[k] = applied.Get(k)
		}
		list.Restore(page, prev)
		_ = list.SetFilters(ctx, filters)
	} else {
		list.Restore(page, filters)
	}

	if list.State().Status == crud.StatusIdle {
		list.Mount(ctx)
	}
	return list.State()
}

func (h *PageHandler) readSubmission(c *gin.Context, entity domain.Entity) (crud.Submission, error) {
	sub := crud.Submission{Values: make(map[string]string, len(entity.Fields))}
	for _, f := range entity.Fields {
		if !f.Type.IsUpload() {
			if v, ok := c.GetPostForm(f.Name); ok {
				sub.Values[f.Name] = v
			}
			continue
		}

		fh, err := c.FormFile(f.Name)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			return crud.Submission{}, fmt.Errorf("read %s: %w", f.Name, err)
		}
		file, err := fh.Open()
		if err != nil {
			return crud.Submission{}, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(file, h.validator.MaxUploadSize()+1))
		file.Close()
		if err != nil {
			return crud.Submission{}, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if len(data) == 0 {
			continue
		}
		if sub.Files == nil {
			sub.Files = make(map[string]domain.FileUpload)
		}
		sub.Files[f.Name] = domain.FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return sub, nil
}

func (h *PageHandler) resolve(c *gin.Context) (domain.Entity, Backend, bool) {
	entity, err := h.catalog.Lookup(c.Param("entity"))
	if err != nil {
		c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
		return domain.Entity{}, nil, false
	}
	backend, err := h.backends(entity)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "open backend",
			slog.String("entity", entity.Name),
			slog.String("error", err.Error()),
		)
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return domain.Entity{}, nil, false
	}
	return entity, backend, true
}

// noSwap answers a failed htmx action: the page keeps what it shows and the
// toast explains why.
func (h *PageHandler) noSwap(c *gin.Context, toasts *crud.Recorder) {
	c.Header("HX-Reswap", "none")
	setTrigger(c, toasts, false)
	c.Status(http.StatusOK)
}

// setTrigger sets the HX-Trigger header: the last toast as showToast, and
// recordsChanged when the grid must refetch.
func setTrigger(c *gin.Context, toasts *crud.Recorder, changed bool) {
	events := make(map[string]any, 2)
	if t, ok := toasts.Last(); ok {
		events["showToast"] = map[string]string{
			"message": t.Message,
			"type":    string(t.Kind),
		}
	}
	if changed {
		events["recordsChanged"] = true
	}
	if len(events) == 0 {
		return
	}
	trigger, _ := json.Marshal(events)
	c.Header("HX-Trigger", string(trigger))
}

// parseRecord decodes the row JSON posted back by the grid. An empty value
// yields a nil record.
func parseRecord(raw string) (domain.Record, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// parseID returns the :id path parameter. Ids are opaque to the dashboard.
func parseID(c *gin.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", fmt.Errorf("invalid id: %q", c.Param("id"))
	}
	return id, nil
}
