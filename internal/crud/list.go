package crud

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/simp-lee/hrdesk/internal/domain"
)

// Status is the fetch lifecycle of a list.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ListState is a snapshot of a ListController.
type ListState struct {
	Page         int
	PageSize     int
	Filters      map[string]string
	Status       Status
	Rows         []domain.Record
	Total        int
	ErrorMessage string
}

// TotalPages returns the number of pages needed for Total rows.
func (s ListState) TotalPages() int {
	if s.PageSize < 1 || s.Total <= 0 {
		return 0
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

// HasPrev reports whether an earlier page exists.
func (s ListState) HasPrev() bool {
	return s.Page > 0
}

// HasNext reports whether a later page exists.
func (s ListState) HasNext() bool {
	return (s.Page+1)*s.PageSize < s.Total
}

// ListController owns one entity list: the page, the filters and the rows
// currently shown. Page size is fixed by the entity.
//
// Every fetch is stamped with a generation number and only the latest
// generation may write state, so a slow response to a superseded query is
// discarded.
type ListController struct {
	entity domain.Entity
	source Lister
	opts   options

	mu      sync.Mutex
	page    int
	filters map[string]string
	status  Status
	rows    []domain.Record
	total   int
	errMsg  string
	gen     uint64
}

// NewListController creates an idle controller for entity.
func NewListController(entity domain.Entity, source Lister, opts ...Option) *ListController {
	return &ListController{
		entity:  entity,
		source:  source,
		opts:    buildOptions(entity, opts),
		filters: map[string]string{},
		rows:    []domain.Record{},
	}
}

// Restore seeds page and filters without fetching. Unknown and blank
// filters are ignored and a negative page becomes 0.
func (l *ListController) Restore(page int, filters map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if page < 0 {
		page = 0
	}
	l.page = page
	l.filters = l.cleanFilters(filters)
}

// Mount performs the initial fetch.
func (l *ListController) Mount(ctx context.Context) {
	l.fetch(ctx)
}

// Refresh refetches the current page with the current filters.
func (l *ListController) Refresh(ctx context.Context) {
	l.fetch(ctx)
}

// SetPage moves to page n and fetches it. Moving to the page already shown
// does not fetch again.
func (l *ListController) SetPage(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("invalid page %d: must be >= 0", n)
	}
	l.mu.Lock()
	if n == l.page && l.status != StatusIdle {
		l.mu.Unlock()
		return nil
	}
	l.page = n
	l.mu.Unlock()

	l.fetch(ctx)
	return nil
}

// SetFilter changes one filter. A changed value resets the page to 0 and
// fetches; a blank value clears the filter.
func (l *ListController) SetFilter(ctx context.Context, key, value string) error {
	if !l.acceptsFilter(key) {
		return fmt.Errorf("entity %q has no filter %q", l.entity.Name, key)
	}
	l.mu.Lock()
	next := maps.Clone(l.filters)
	if v := strings.TrimSpace(value); v != "" {
		next[key] = v
	} else {
		delete(next, key)
	}
	changed := l.applyFilters(next)
	l.mu.Unlock()

	if changed {
		l.fetch(ctx)
	}
	return nil
}

// SetFilters replaces the whole filter set. Like SetFilter, a change resets
// the page to 0 and fetches.
func (l *ListController) SetFilters(ctx context.Context, filters map[string]string) error {
	for key, value := range filters {
		if strings.TrimSpace(value) != "" && !l.acceptsFilter(key) {
			return fmt.Errorf("entity %q has no filter %q", l.entity.Name, key)
		}
	}
	l.mu.Lock()
	changed := l.applyFilters(l.cleanFilters(filters))
	l.mu.Unlock()

	if changed {
		l.fetch(ctx)
	}
	return nil
}

// State returns a snapshot safe to read without further locking.
func (l *ListController) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ListState{
		Page:         l.page,
		PageSize:     l.entity.PageSize,
		Filters:      maps.Clone(l.filters),
		Status:       l.status,
		Rows:         append([]domain.Record(nil), l.rows...),
		Total:        l.total,
		ErrorMessage: l.errMsg,
	}
}

// applyFilters must be called with l.mu held.
func (l *ListController) applyFilters(next map[string]string) bool {
	if maps.Equal(next, l.filters) {
		return false
	}
	l.filters = next
	l.page = 0
	return true
}

func (l *ListController) fetch(ctx context.Context) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	q := domain.ListQuery{
		Page:     l.page,
		PageSize: l.entity.PageSize,
		Filters:  maps.Clone(l.filters),
	}
	l.status = StatusLoading
	l.mu.Unlock()

	res, err := l.source.List(ctx, q)

	var rows []domain.Record
	if err == nil {
		rows = l.materialize(ctx, res.Rows)
	}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		l.opts.logger.DebugContext(ctx, "discarding superseded list response",
			slog.Uint64("generation", gen),
		)
		return
	}
	if err != nil {
		l.status = StatusFailed
		l.rows = []domain.Record{}
		l.total = 0
		l.errMsg = l.entity.ListErrorMessage
		l.mu.Unlock()

		l.opts.logger.ErrorContext(ctx, "list fetch failed",
			slog.Int("page", q.Page),
			slog.String("error", err.Error()),
		)
		l.opts.notifier.Notify(Toast{Kind: ToastError, Message: l.entity.ListErrorMessage})
		return
	}
	l.status = StatusLoaded
	l.rows = rows
	l.total = res.Total
	l.errMsg = ""
	l.mu.Unlock()
}

// materialize drops rows without an id and fills blank column values with
// the empty marker.
func (l *ListController) materialize(ctx context.Context, in []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(in))
	dropped := 0
	for _, row := range in {
		if _, ok := row.ID(); !ok {
			dropped++
			continue
		}
		rec := row.Clone()
		for _, col := range l.entity.Columns {
			if !hasValue(rec[col.Field]) {
				rec[col.Field] = domain.EmptyMarker
			}
		}
		out = append(out, rec)
	}
	if dropped > 0 {
		l.opts.logger.WarnContext(ctx, "dropped list rows without id", slog.Int("dropped", dropped))
	}
	return out
}

func (l *ListController) acceptsFilter(key string) bool {
	for _, k := range l.entity.FilterKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func (l *ListController) cleanFilters(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || !l.acceptsFilter(k) {
			continue
		}
		out[k] = v
	}
	return out
}
