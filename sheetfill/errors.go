package sheetfill

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines export error kinds.
type ErrorKind string

const (
	KindTemplateNotFound  ErrorKind = "template_not_found"
	KindTemplateInvalid   ErrorKind = "template_invalid"
	KindUnresolvableField ErrorKind = "unresolvable_field"
	KindExpansionConflict ErrorKind = "expansion_conflict"
	KindRendererTimeout   ErrorKind = "renderer_timeout"
	KindRendererCrashed   ErrorKind = "renderer_crashed"
	KindPoolExhausted     ErrorKind = "pool_exhausted"
	KindValidation        ErrorKind = "validation"
	KindCanceled          ErrorKind = "canceled"
	KindInternal          ErrorKind = "internal"
)

// Error wraps errors with a kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new sheetfill error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Retryable reports whether the caller may retry the same request. Renderer
// timeouts and pool exhaustion are transient saturation signals; everything
// else requires template or data fixes first.
func Retryable(err error) bool {
	switch KindFromError(err) {
	case KindRendererTimeout, KindPoolExhausted:
		return true
	}
	return false
}

// KindFromError maps an error to its sheetfill error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindRendererTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}

// AsGoError maps an error into a go-errors error for boundary layers.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()

	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		msg = e.Msg
	}

	switch kind {
	case KindTemplateNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("template_not_found")
	case KindTemplateInvalid:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("template_invalid")
	case KindUnresolvableField:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("unresolvable_field")
	case KindExpansionConflict:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("expansion_conflict")
	case KindRendererTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("renderer_timeout")
	case KindRendererCrashed:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("renderer_crashed")
	case KindPoolExhausted:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("pool_exhausted")
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}
