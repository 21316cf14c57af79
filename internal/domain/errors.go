package domain

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error codes for business logic errors.
const (
	CodeNotFound      = 1
	CodeAlreadyExists = 2
	CodeValidation    = 3
	CodeInternal      = 4
	CodeUnauthorized  = 5
	CodeConflict      = 6
)

// AppError represents a business logic error with a code, message, and optional wrapped error.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined business errors.
//
// Use the Is* helpers rather than errors.Is to match a category: they compare
// codes, so freshly constructed AppErrors with the same code match too.
var (
	ErrNotFound      = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists = &AppError{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation    = &AppError{Code: CodeValidation, Message: "validation error"}
	ErrInternal      = &AppError{Code: CodeInternal, Message: "internal error"}
	ErrUnauthorized  = &AppError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrConflict      = &AppError{Code: CodeConflict, Message: "conflict"}
)

// NewAppError creates a new AppError with the given code, message, and wrapped error.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsNotFound reports whether err is or wraps an AppError with CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsAlreadyExists reports whether err is or wraps an AppError with CodeAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, CodeAlreadyExists)
}

// IsValidation reports whether err is or wraps an AppError with CodeValidation.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsInternal reports whether err is or wraps an AppError with CodeInternal.
func IsInternal(err error) bool {
	return hasCode(err, CodeInternal)
}

// IsUnauthorized reports whether err is or wraps an AppError with CodeUnauthorized.
func IsUnauthorized(err error) bool {
	return hasCode(err, CodeUnauthorized)
}

// IsConflict reports whether err is or wraps an AppError with CodeConflict.
func IsConflict(err error) bool {
	return hasCode(err, CodeConflict)
}

func hasCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatusCode maps an error to an HTTP status code.
// If the error is an *AppError, the code is mapped; otherwise http.StatusInternalServerError is returned.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNotFound:
			return http.StatusNotFound
		case CodeAlreadyExists:
			return http.StatusConflict
		case CodeValidation:
			return http.StatusBadRequest
		case CodeInternal:
			return http.StatusInternalServerError
		case CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeConflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// FetchError is returned when a collection read fails: a transport failure,
// a non-2xx status, or a body that cannot be parsed at all. Status is 0 when
// no HTTP response was received.
type FetchError struct {
	Reason string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := e.Reason
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MutationError is returned when a create, update or delete is rejected.
// Message is safe to show to the user verbatim.
type MutationError struct {
	Message string
	Status  int
	Err     error
}

func (e *MutationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// ValidationError carries field-scoped messages produced before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsMutationError reports whether err is or wraps a *MutationError.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}

// FieldErrors returns the field messages of a *ValidationError in err's chain,
// or nil when there is none.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// UserMessage returns the text a toast should show for err. Mutation errors
// keep their server-supplied message; everything else falls back.
func UserMessage(err error, fallback string) string {
	var me *MutationError
	if errors.As(err, &me) && strings.TrimSpace(me.Message) != "" {
		return me.Message
	}
	return fallback
}
