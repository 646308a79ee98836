package handler

import "errors"

var (
	// ErrNilResponse indicates a handler returned nil instead of a Response.
	ErrNilResponse = errors.New("handler returned nil response")
	// ErrStreamingUnsupported indicates an SSE response on a non-DataStar request.
	ErrStreamingUnsupported = errors.New("stream requires an event-stream request")
)
