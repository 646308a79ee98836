package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/pkg/binder"
)

type sendRequest struct {
	Type       string   `json:"type"`
	Recipients []string `json:"recipients"`
}

func TestJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantErr     error
	}{
		{"valid body", http.MethodPost, "application/json", `{"type":"reminder","recipients":["a@x.com"]}`, nil},
		{"charset parameter", http.MethodPost, "application/json; charset=utf-8", `{"type":"reminder"}`, nil},
		{"get is skipped", http.MethodGet, "", "", binder.ErrBinderNotApplicable},
		{"missing content type", http.MethodPost, "", `{}`, binder.ErrMissingContentType},
		{"wrong media type", http.MethodPost, "text/plain", `{}`, binder.ErrUnsupportedMediaType},
		{"empty body", http.MethodPost, "application/json", "", binder.ErrFailedToParseJSON},
		{"unknown field", http.MethodPost, "application/json", `{"kind":"reminder"}`, binder.ErrFailedToParseJSON},
		{"trailing data", http.MethodPost, "application/json", `{"type":"reminder"}{}`, binder.ErrFailedToParseJSON},
		{"too large", http.MethodPost, "application/json", `{"type":"` + strings.Repeat("a", binder.DefaultMaxJSONSize) + `"}`, binder.ErrFailedToParseJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(tt.method, "/api/send-email", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			var req sendRequest
			err := binder.JSON()(r, &req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "reminder", req.Type)
		})
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()

	type confirmRequest struct {
		TokenHash string   `query:"token_hash"`
		Type      string   `query:"type"`
		Limit     int      `query:"limit"`
		Debug     *bool    `query:"debug"`
		Tags      []string `query:"tag"`
		Body      string   `json:"body"`
	}

	t.Run("binds tagged fields", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/auth/confirm?token_hash=abc&type=magiclink&limit=3&debug=true&tag=a&tag=b&body=x", nil)

		var req confirmRequest
		require.NoError(t, binder.Query()(r, &req))
		assert.Equal(t, "abc", req.TokenHash)
		assert.Equal(t, "magiclink", req.Type)
		assert.Equal(t, 3, req.Limit)
		require.NotNil(t, req.Debug)
		assert.True(t, *req.Debug)
		assert.Equal(t, []string{"a", "b"}, req.Tags)
		assert.Empty(t, req.Body)
	})

	t.Run("invalid int", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/?limit=many", nil)

		var req confirmRequest
		assert.ErrorIs(t, binder.Query()(r, &req), binder.ErrFailedToParseQuery)
	})

	t.Run("non pointer target", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.ErrorIs(t, binder.Query()(r, confirmRequest{}), binder.ErrFailedToParseQuery)
	})
}
