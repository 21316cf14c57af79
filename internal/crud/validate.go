package crud

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/hrdesk/internal/domain"
)

// DefaultMaxUploadSize is the upload ceiling applied to file and image fields.
const DefaultMaxUploadSize int64 = 5 << 20

// DefaultImageTypes is the allow-list for image fields, matched against the
// sniffed content type rather than the declared one.
var DefaultImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Submission is the raw input of a form submit: string values as typed and
// any attached files.
type Submission struct {
	Values map[string]string
	Files  map[string]domain.FileUpload
}

// Validator checks a submission against an entity schema and normalizes it
// into a wire payload.
type Validator struct {
	validate   *validator.Validate
	maxUpload  int64
	imageTypes []string
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMaxUploadSize sets the upload ceiling in bytes.
func WithMaxUploadSize(n int64) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.maxUpload = n
		}
	}
}

// WithImageTypes replaces the image MIME allow-list.
func WithImageTypes(types ...string) ValidatorOption {
	return func(v *Validator) {
		if len(types) > 0 {
			v.imageTypes = append([]string(nil), types...)
		}
	}
}

// NewValidator creates a Validator with the default upload limits.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		validate:   validator.New(),
		maxUpload:  DefaultMaxUploadSize,
		imageTypes: DefaultImageTypes,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxUploadSize returns the upload ceiling in bytes.
func (v *Validator) MaxUploadSize() int64 {
	return v.maxUpload
}

// Normalize validates sub and returns the payload to send. seed is the record
// being edited, or nil for a create; an upload field that already holds a
// value in seed is not required again. The error, if any, is a
// *domain.ValidationError.
func (v *Validator) Normalize(e domain.Entity, mode domain.MutationMode, sub Submission, seed domain.Record) (domain.Payload, error) {
	payload := domain.Payload{Fields: make(map[string]any, len(e.Fields))}
	errs := make(map[string]string)

	for _, f := range e.Fields {
		if f.Type.IsUpload() {
			file, msg := v.upload(f, sub.Files[f.Name])
			switch {
			case msg != "":
				errs[f.Name] = msg
			case file != nil:
				if payload.Files == nil {
					payload.Files = make(map[string]domain.FileUpload)
				}
				payload.Files[f.Name] = *file
			case f.Required && !(mode == domain.ModeUpdate && hasValue(seed[f.Name])):
				errs[f.Name] = "is required"
			}
			continue
		}

		value, msg := v.field(f, sub.Values[f.Name])
		if msg != "" {
			errs[f.Name] = msg
			continue
		}
		payload.Fields[f.Name] = value
	}

	if len(errs) > 0 {
		return domain.Payload{}, &domain.ValidationError{Fields: errs}
	}
	return payload, nil
}

func (v *Validator) field(f domain.Field, input string) (any, string) {
	raw := strings.TrimSpace(input)

	if f.Type == domain.FieldBool {
		b, ok := parseBool(raw)
		if !ok {
			return nil, "must be true or false"
		}
		return b, ""
	}

	if raw == "" {
		if f.Required {
			return nil, "is required"
		}
		return nil, ""
	}

	var value any
	switch f.Type {
	case domain.FieldNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, "must be a number"
		}
		value = n
	case domain.FieldDate:
		t, err := ParseDate(raw)
		if err != nil {
			return nil, "must be a date (YYYY-MM-DD)"
		}
		return FormatDate(t), ""
	case domain.FieldDateTime:
		t, err := ParseDateTime(raw)
		if err != nil {
			return nil, "must be a date and time"
		}
		return FormatDateTime(t), ""
	case domain.FieldEnum:
		if !contains(f.Options, raw) {
			return nil, "must be one of " + strings.Join(f.Options, ", ")
		}
		return raw, ""
	default:
		value = raw
	}

	if f.Rules != "" {
		if err := v.validate.Var(value, f.Rules); err != nil {
			return nil, ruleMessage(err)
		}
	}
	return value, ""
}

func (v *Validator) upload(f domain.Field, file domain.FileUpload) (*domain.FileUpload, string) {
	if file.Size() == 0 {
		return nil, ""
	}
	if file.Size() > v.maxUpload {
		return nil, "must be at most " + formatBytes(v.maxUpload)
	}

	detected := mimetype.Detect(file.Data)
	if f.Type == domain.FieldImage {
		if !mimetype.EqualsAny(detected.String(), v.imageTypes...) {
			return nil, "must be an image of type " + strings.Join(v.imageTypes, ", ")
		}
		file.ContentType = detected.String()
	} else if file.ContentType == "" {
		file.ContentType = detected.String()
	}
	return &file, ""
}

func ruleMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "is invalid"
	}
	fe := ve[0]
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "alphanum":
		return "must contain only letters and digits"
	case "min":
		return "must be at least " + fe.Param() + lengthUnit(fe)
	case "max":
		return "must be at most " + fe.Param() + lengthUnit(fe)
	case "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("is invalid (%s)", fe.Tag())
	}
}

func lengthUnit(fe validator.FieldError) string {
	if _, ok := fe.Value().(string); ok {
		return " characters"
	}
	return ""
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "", "false", "off", "0", "no":
		return false, true
	case "true", "on", "1", "yes":
		return true, true
	default:
		return false, false
	}
}

func hasValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		s := strings.TrimSpace(t)
		return s != "" && s != domain.EmptyMarker
	default:
		return true
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n%mib == 0 {
		return strconv.FormatInt(n/mib, 10) + " MiB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
