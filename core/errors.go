package core

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies an error for presentation. Services convert store, provider
// and transport failures into one of these before returning to handlers.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindInvalidRequest     Kind = "invalid_request"
	KindTransportFailure   Kind = "transport_failure"
	KindServiceUnavailable Kind = "service_unavailable"
	KindTimeout            Kind = "timeout"
	KindConflict           Kind = "conflict"
	KindUnknown            Kind = "unknown"
)

// Error is a classified error with a short user-facing message.
// Err holds the diagnostic cause; it is logged, never rendered.
type Error struct {
	Kind    Kind
	Message string
	Field   string // set for field-level InvalidRequest errors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, core.ErrTimeout) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Kind markers for errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrTransportFailure   = &Error{Kind: KindTransportFailure}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrUnknown            = &Error{Kind: KindUnknown}
)

// NotFound is a missing resource.
func NotFound(msg string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: cause}
}

// Unauthorized is a missing or insufficient identity.
func Unauthorized(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: cause}
}

// InvalidField reports a malformed input field.
func InvalidField(field, msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg, Field: field}
}

// Invalid is InvalidField carrying the full set of failures as its cause.
func Invalid(field, msg string, cause error) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg, Field: field, Err: cause}
}

func TransportFailure(msg string, cause error) *Error {
	return &Error{Kind: KindTransportFailure, Message: msg, Err: cause}
}

func ServiceUnavailable(msg string, cause error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg, Err: cause}
}

func Timeout(msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: msg, Err: cause}
}

func Conflict(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: cause}
}

// Unknown wraps an unclassified failure with the generic message.
func Unknown(cause error) *Error {
	return &Error{Kind: KindUnknown, Message: "Something went wrong. Please try again.", Err: cause}
}

// Wrap classifies an arbitrary store or provider error: deadline errors become
// Timeout, classified errors pass through, everything else becomes Unknown.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("The request took too long. Please try again.", err)
	}
	return Unknown(err)
}

// KindOf returns the kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindTransportFailure:
		return http.StatusBadGateway
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request took too long. Please try again."
	}
	return "Internal server error"
}
