package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/handler"
	"github.com/rsvpkit/wedding/pkg/binder"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/validator"
)

type submitRequest struct {
	Attending string `json:"is_attending"`
	Preview   bool   `query:"preview"`
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) handler.JSONResponse {
	t.Helper()
	var got handler.JSONResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &got))
	return got
}

func TestWrap_BindsAndRenders(t *testing.T) {
	t.Parallel()

	h := handler.HandlerFunc[handler.Context, submitRequest](
		func(ctx handler.Context, req submitRequest) handler.Response {
			return handler.JSON(map[string]any{"is_attending": req.Attending, "preview": req.Preview})
		},
	)
	wrapped := handler.Wrap(h, handler.WithBinders[handler.Context, submitRequest](binder.JSON(), binder.Query()))

	r := httptest.NewRequest(http.MethodPut, "/api/rsvp?preview=true", strings.NewReader(`{"is_attending":"yes"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	wrapped(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeEnvelope(t, w.Body)
	assert.Equal(t, map[string]any{"is_attending": "yes", "preview": true}, got.Data)
}

func TestWrap_SkipsInapplicableBinder(t *testing.T) {
	t.Parallel()

	called := false
	h := handler.HandlerFunc[handler.Context, submitRequest](
		func(ctx handler.Context, req submitRequest) handler.Response {
			called = true
			return handler.Empty()
		},
	)
	wrapped := handler.Wrap(h, handler.WithBinders[handler.Context, submitRequest](binder.JSON()))

	w := httptest.NewRecorder()
	wrapped(w, httptest.NewRequest(http.MethodGet, "/api/rsvp", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestWrap_DecoratorOrder(t *testing.T) {
	t.Parallel()

	var trace []string
	mark := func(name string) handler.Decorator[handler.Context, submitRequest] {
		return func(next handler.HandlerFunc[handler.Context, submitRequest]) handler.HandlerFunc[handler.Context, submitRequest] {
			return func(ctx handler.Context, req submitRequest) handler.Response {
				trace = append(trace, name)
				return next(ctx, req)
			}
		}
	}
	h := handler.HandlerFunc[handler.Context, submitRequest](
		func(ctx handler.Context, req submitRequest) handler.Response {
			trace = append(trace, "handler")
			return handler.Empty()
		},
	)

	wrapped := handler.Wrap(h, handler.WithDecorators(mark("outer"), mark("inner")))
	wrapped(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, trace)
}

func TestWrap_NilResponse(t *testing.T) {
	t.Parallel()

	var got error
	h := handler.HandlerFunc[handler.Context, submitRequest](
		func(ctx handler.Context, req submitRequest) handler.Response { return nil },
	)
	wrapped := handler.Wrap(h, handler.WithErrorHandler[handler.Context, submitRequest](
		func(ctx handler.Context, err error) { got = err },
	))
	wrapped(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.ErrorIs(t, got, handler.ErrNilResponse)
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"not found", core.NotFound("Guest not found.", nil), http.StatusNotFound, "not_found", ""},
		{"unauthorized", core.Unauthorized("Unauthorized", nil), http.StatusUnauthorized, "unauthorized", ""},
		{"invalid field", core.InvalidField("type", "Invalid email type"), http.StatusBadRequest, "invalid_request", "type"},
		{"transport", core.TransportFailure("Failed to send", errors.New("smtp")), http.StatusBadGateway, "transport_failure", ""},
		{"unconfigured", core.ServiceUnavailable("Email service not configured", nil), http.StatusServiceUnavailable, "service_unavailable", ""},
		{"timeout", core.Timeout("Try again", nil), http.StatusGatewayTimeout, "timeout", ""},
		{"conflict", core.Conflict("Batch in progress", nil), http.StatusConflict, "conflict", ""},
		{"validation", validator.Apply(validator.Required("email", "")), http.StatusBadRequest, "invalid_request", "email"},
		{"http error", core.ErrTooManyRequests, http.StatusTooManyRequests, "too_many_requests", ""},
		{"binder", binder.ErrFailedToParseJSON, http.StatusBadRequest, "invalid_request", ""},
		{"media type", binder.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type", ""},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			require.NoError(t, handler.JSONError(tt.err).Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))

			assert.Equal(t, tt.wantStatus, w.Code)
			got := decodeEnvelope(t, w.Body)
			require.NotNil(t, got.Error)
			assert.Equal(t, tt.wantCode, got.Error.Code)
			assert.NotEmpty(t, got.Error.Message)
			assert.NotContains(t, got.Error.Message, "smtp")
			if tt.wantField != "" {
				assert.Contains(t, got.Error.Details, tt.wantField)
			}
		})
	}
}

func TestRawJSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	resp := handler.RawJSON(map[string]any{"results": []any{}}, handler.WithJSONStatus(http.StatusAccepted))
	require.NoError(t, resp.Render(w, httptest.NewRequest(http.MethodPost, "/", nil)))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"results":[]}`, w.Body.String())
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	t.Run("plain request", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		require.NoError(t, handler.Redirect("/dashboard").Render(w, httptest.NewRequest(http.MethodGet, "/auth/confirm", nil)))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	})

	t.Run("datastar request", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/auth/confirm", nil)
		r.Header.Set("Accept", "text/event-stream")
		w := httptest.NewRecorder()
		require.NoError(t, handler.Redirect("/admin").Render(w, r))
		assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
		assert.Contains(t, w.Body.String(), "/admin")
	})
}

func TestSSE(t *testing.T) {
	t.Parallel()

	t.Run("requires event stream", func(t *testing.T) {
		t.Parallel()
		err := handler.SSE(func(handler.StreamContext) error { return nil }).
			Render(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/session/stream", nil))
		assert.ErrorIs(t, err, handler.ErrStreamingUnsupported)
	})

	t.Run("sends signals", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/api/session/stream", nil)
		r.Header.Set("Accept", "text/event-stream")
		w := httptest.NewRecorder()

		err := handler.SSE(func(stream handler.StreamContext) error {
			return stream.SendSignals(map[string]any{"session": map[string]any{"role": "guest"}})
		}).Render(w, r)
		require.NoError(t, err)
		assert.Contains(t, w.Body.String(), "datastar-patch-signals")
		assert.Contains(t, w.Body.String(), `"role":"guest"`)
	})
}

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log := logger.New(logger.WithOutput(&logs), logger.WithFormat(logger.FormatJSON))
	eh := handler.NewErrorHandler(log)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/send-email", nil)
	eh(handler.NewContext(w, r), core.Unauthorized("Unauthorized", errors.New("no session")))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	got := decodeEnvelope(t, w.Body)
	require.NotNil(t, got.Error)
	assert.Equal(t, "unauthorized", got.Error.Code)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), "no session")
}

func TestWrap_FailGoesToErrorHandler(t *testing.T) {
	t.Parallel()

	var got error
	h := handler.HandlerFunc[handler.Context, submitRequest](
		func(ctx handler.Context, req submitRequest) handler.Response {
			return handler.Fail(core.Conflict("busy", nil))
		},
	)
	wrapped := handler.Wrap(h, handler.WithErrorHandler[handler.Context, submitRequest](
		func(ctx handler.Context, err error) { got = err },
	))
	wrapped(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, core.KindConflict, core.KindOf(got))
}
