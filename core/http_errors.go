package core

import "net/http"

// HTTPError represents an HTTP error raised by the transport layer itself
// (binding, routing, rate limiting) rather than by a service.
// Key is a stable machine-readable code.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrNotAuthenticated    = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrRouteNotFound       = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrMethodNotAllowed    = HTTPError{Code: http.StatusMethodNotAllowed, Key: "method_not_allowed"}
	ErrUnsupportedMedia    = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
)

// NewHTTPError creates a custom HTTP error with the given status code and key.
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}
