package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/binder"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/requestid"
	"github.com/rsvpkit/wedding/pkg/validator"
)

// ErrorInfo is the classified, renderable form of an error.
type ErrorInfo struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string][]string
	LogLevel   slog.Level
}

func classifyError(err error) ErrorInfo {
	info := ErrorInfo{
		StatusCode: http.StatusInternalServerError,
		Code:       string(core.KindUnknown),
		Message:    "Internal server error",
	}

	var (
		ve      validator.ValidationErrors
		ce      *core.Error
		httpErr core.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		info.StatusCode = http.StatusBadRequest
		info.Code = string(core.KindInvalidRequest)
		info.Message = "Please check the highlighted fields."
		if len(ve) > 0 {
			info.Message = ve.First().Message
			info.Details = ve.Map()
		}
	case errors.As(err, &ce):
		info.StatusCode = core.Status(ce.Kind)
		info.Code = string(ce.Kind)
		info.Message = core.Message(ce)
		if ce.Field != "" {
			info.Details = map[string][]string{ce.Field: {info.Message}}
		}
	case errors.As(err, &httpErr):
		info.StatusCode = httpErr.Code
		info.Code = httpErr.Key
		info.Message = http.StatusText(httpErr.Code)
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		info.StatusCode = http.StatusUnsupportedMediaType
		info.Code = core.ErrUnsupportedMedia.Key
		info.Message = "Request body must be JSON."
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToParseQuery):
		info.StatusCode = http.StatusBadRequest
		info.Code = string(core.KindInvalidRequest)
		info.Message = "Malformed request."
	case errors.Is(err, context.DeadlineExceeded):
		info.StatusCode = http.StatusGatewayTimeout
		info.Code = string(core.KindTimeout)
		info.Message = core.Message(err)
	}

	info.LogLevel = slog.LevelError
	if info.StatusCode < http.StatusInternalServerError {
		info.LogLevel = slog.LevelWarn
	}
	return info
}

// NewErrorHandler logs the error with request attributes and renders it:
// signals {"error": {...}} for DataStar requests, the JSON envelope otherwise.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		reqID := requestid.FromContext(r.Context())
		info := classifyError(err)

		log.LogAttrs(r.Context(), info.LogLevel, "request error",
			logger.Error(err),
			slog.Int("status_code", info.StatusCode),
			slog.String("code", info.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if IsDataStar(r) {
			stream := &streamContext{Context: ctx, sse: NewSSE(ctx.ResponseWriter(), r)}
			if sendErr := stream.SendSignals(map[string]any{"error": map[string]any{
				"code":       info.Code,
				"message":    info.Message,
				"request_id": reqID,
			}}); sendErr != nil {
				log.LogAttrs(r.Context(), slog.LevelError, "failed to send error signals",
					logger.Error(sendErr),
					logger.Event("render_error_signals"),
				)
			}
			return
		}

		resp := &jsonResponse{
			status: info.StatusCode,
			body: JSONResponse{Error: &ErrorDetail{
				Code:      info.Code,
				Message:   info.Message,
				Details:   info.Details,
				RequestID: reqID,
			}},
		}
		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "failed to render error",
				logger.Error(renderErr),
				logger.Event("render_error"),
			)
		}
	}
}
