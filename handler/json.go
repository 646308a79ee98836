package handler

import (
	"encoding/json"
	"net/http"
)

// JSONResponse is the response envelope.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code      string              `json:"code,omitempty"`
	Message   string              `json:"message,omitempty"`
	Details   map[string][]string `json:"details,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type JSONOption func(*jsonResponse)

func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) {
		if env, ok := r.body.(JSONResponse); ok {
			env.Meta = meta
			r.body = env
		}
	}
}

// JSON renders v as {"data": v}.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RawJSON renders v as is, without the envelope.
func RawJSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err as {"error": {...}} with the status of its kind.
func JSONError(err error, opts ...JSONOption) Response {
	return errorResponse(classifyError(err), opts...)
}

func errorResponse(info ErrorInfo, opts ...JSONOption) Response {
	r := &jsonResponse{
		status: info.StatusCode,
		body: JSONResponse{Error: &ErrorDetail{
			Code:    info.Code,
			Message: info.Message,
			Details: info.Details,
		}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
