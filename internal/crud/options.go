// Package crud implements the list, form and delete-confirmation controllers
// shared by every entity page.
//
// Controllers hold per-page state and talk to the backend through small
// interfaces satisfied by *remote.Client. The server is always the source of
// truth: mutations never patch the row set locally, they trigger a refetch.
package crud

import (
	"context"
	"log/slog"

	"github.com/simp-lee/hrdesk/internal/domain"
)

// Lister reads one page of a collection.
type Lister interface {
	List(ctx context.Context, q domain.ListQuery) (domain.ListResult, error)
}

// Mutator creates or updates a record.
type Mutator interface {
	Mutate(ctx context.Context, r domain.MutationRequest) (domain.MutationResult, error)
}

// Remover deletes a record by id.
type Remover interface {
	Remove(ctx context.Context, id string) (domain.MutationResult, error)
}

type options struct {
	logger    *slog.Logger
	notifier  Notifier
	onSuccess func(context.Context)
	session   domain.Session
	validator *Validator
}

// Option configures a controller. Options that do not apply to a given
// controller are ignored.
type Option func(*options)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNotifier sets where toasts go.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithOnSuccess registers the callback run after a successful mutation,
// usually the list's Refresh.
func WithOnSuccess(fn func(context.Context)) Option {
	return func(o *options) { o.onSuccess = fn }
}

// WithSession attributes form submissions to the operator.
func WithSession(s domain.Session) Option {
	return func(o *options) { o.session = s }
}

// WithValidator replaces the form's default validator.
func WithValidator(v *Validator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

func buildOptions(entity domain.Entity, opts []Option) options {
	o := options{
		logger:   slog.Default(),
		notifier: discardNotifier{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator == nil {
		o.validator = NewValidator()
	}
	o.logger = o.logger.With(slog.String("entity", entity.Name))
	return o
}
