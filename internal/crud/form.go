package crud

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/simp-lee/hrdesk/internal/domain"
)

// FormStatus is the lifecycle of a mutation form.
type FormStatus int

const (
	FormClosed FormStatus = iota
	FormOpen
	FormSubmitting
)

func (s FormStatus) String() string {
	switch s {
	case FormClosed:
		return "closed"
	case FormOpen:
		return "open"
	case FormSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

var (
	// ErrFormClosed is returned by Submit when the form is not open.
	ErrFormClosed = errors.New("form is not open")
	// ErrSubmitInFlight is returned by Submit while a previous submit is pending.
	ErrSubmitInFlight = errors.New("submission already in progress")
)

// FormState is a snapshot of a FormController.
type FormState struct {
	Status      FormStatus
	Mode        domain.MutationMode
	TargetID    string
	Values      map[string]any
	FieldErrors map[string]string
	SubmitError string
}

// FormController drives one create-or-edit popup.
type FormController struct {
	entity  domain.Entity
	mutator Mutator
	opts    options

	mu        sync.Mutex
	status    FormStatus
	mode      domain.MutationMode
	targetID  string
	seed      domain.Record
	values    map[string]any
	fieldErrs map[string]string
	submitErr string
}

// NewFormController creates a closed form for entity.
func NewFormController(entity domain.Entity, mutator Mutator, opts ...Option) *FormController {
	return &FormController{
		entity:  entity,
		mutator: mutator,
		opts:    buildOptions(entity, opts),
	}
}

// Open shows the form. In ModeUpdate every field is seeded from record,
// which must carry an id. In ModeCreate fields start at their empty values.
// Opening always discards whatever the form held before.
func (f *FormController) Open(mode domain.MutationMode, record domain.Record) error {
	var (
		targetID string
		seed     domain.Record
	)
	switch mode {
	case domain.ModeCreate:
	case domain.ModeUpdate:
		id, ok := record.ID()
		if !ok {
			return errors.New("edit requires a record with an id")
		}
		targetID = id
		seed = record.Clone()
	default:
		return errors.New("unknown form mode")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == FormSubmitting {
		return ErrSubmitInFlight
	}
	f.status = FormOpen
	f.mode = mode
	f.targetID = targetID
	f.seed = seed
	f.values = f.initialValues(seed)
	f.fieldErrs = nil
	f.submitErr = ""
	return nil
}

// Close hides the form and discards in-progress edits.
func (f *FormController) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

// Submit validates sub and sends it. Validation failures never reach the
// network: they return a *domain.ValidationError and leave the form open
// with field errors set. A rejected mutation keeps the form open with the
// entered values and the server's message; success closes the form, emits a
// toast and runs the success callback.
func (f *FormController) Submit(ctx context.Context, sub Submission) (domain.MutationResult, error) {
	f.mu.Lock()
	switch f.status {
	case FormClosed:
		f.mu.Unlock()
		return domain.MutationResult{}, ErrFormClosed
	case FormSubmitting:
		f.mu.Unlock()
		return domain.MutationResult{}, ErrSubmitInFlight
	}

	f.values = f.enteredValues(sub)
	payload, err := f.opts.validator.Normalize(f.entity, f.mode, sub, f.seed)
	if err != nil {
		f.fieldErrs = domain.FieldErrors(err)
		f.submitErr = ""
		f.mu.Unlock()
		return domain.MutationResult{}, err
	}
	f.attribute(payload)

	req := domain.MutationRequest{Mode: f.mode, TargetID: f.targetID, Payload: payload}
	f.status = FormSubmitting
	f.fieldErrs = nil
	f.submitErr = ""
	f.mu.Unlock()

	res, err := f.mutator.Mutate(ctx, req)
	if err != nil {
		msg := domain.UserMessage(err, "Failed to save "+strings.ToLower(f.entity.Singular))
		f.mu.Lock()
		f.status = FormOpen
		f.submitErr = msg
		f.mu.Unlock()

		f.opts.logger.WarnContext(ctx, "form submission failed",
			slog.String("mode", req.Mode.String()),
			slog.String("target_id", req.TargetID),
			slog.String("error", err.Error()),
		)
		f.opts.notifier.Notify(Toast{Kind: ToastError, Message: msg})
		return domain.MutationResult{}, err
	}

	f.mu.Lock()
	f.reset()
	f.mu.Unlock()

	f.opts.notifier.Notify(Toast{Kind: ToastSuccess, Message: res.Message})
	if f.opts.onSuccess != nil {
		f.opts.onSuccess(ctx)
	}
	return res, nil
}

// State returns a snapshot of the form.
func (f *FormController) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FormState{
		Status:      f.status,
		Mode:        f.mode,
		TargetID:    f.targetID,
		Values:      maps.Clone(f.values),
		FieldErrors: maps.Clone(f.fieldErrs),
		SubmitError: f.submitErr,
	}
}

// reset must be called with f.mu held.
func (f *FormController) reset() {
	f.status = FormClosed
	f.mode = domain.ModeCreate
	f.targetID = ""
	f.seed = nil
	f.values = nil
	f.fieldErrs = nil
	f.submitErr = ""
}

func (f *FormController) attribute(p domain.Payload) {
	if f.opts.session.Anonymous() {
		return
	}
	if f.mode == domain.ModeCreate {
		p.Fields[domain.FieldCreatedBy] = f.opts.session.UserID
	}
	p.Fields[domain.FieldUpdatedBy] = f.opts.session.UserID
}

// initialValues returns type-appropriate empties, overlaid with the seed
// record's values when editing. Display markers in the seed count as empty.
func (f *FormController) initialValues(seed domain.Record) map[string]any {
	values := make(map[string]any, len(f.entity.Fields))
	for _, field := range f.entity.Fields {
		values[field.Name] = emptyValue(field.Type)
		if seed == nil {
			continue
		}
		v, ok := seed[field.Name]
		if !ok || !hasValue(v) {
			continue
		}
		values[field.Name] = v
	}
	return values
}

// enteredValues keeps what the user typed so a failed submit can be shown
// again without re-entry. Uploads keep the seeded value.
func (f *FormController) enteredValues(sub Submission) map[string]any {
	values := f.initialValues(f.seed)
	for _, field := range f.entity.Fields {
		if field.Type.IsUpload() {
			continue
		}
		raw, ok := sub.Values[field.Name]
		if field.Type == domain.FieldBool {
			b, _ := parseBool(strings.TrimSpace(raw))
			values[field.Name] = b
			continue
		}
		if ok {
			values[field.Name] = raw
		}
	}
	return values
}

func emptyValue(t domain.FieldType) any {
	switch t {
	case domain.FieldString, domain.FieldText, domain.FieldEnum:
		return ""
	case domain.FieldBool:
		return false
	default:
		return nil
	}
}
