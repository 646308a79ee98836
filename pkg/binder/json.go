// Package binder decodes HTTP requests into typed request structs.
package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxJSONSize is the maximum accepted JSON body (1MB).
const DefaultMaxJSONSize = 1 << 20

// JSON decodes a strict JSON body: unknown fields and trailing data are rejected.
// Requests without a body method (GET, HEAD, DELETE) are skipped.
func JSON() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodDelete:
			return ErrBinderNotApplicable
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxJSONSize+1))
		if err != nil {
			return fmt.Errorf("%w: failed to read request body: %v", ErrFailedToParseJSON, err)
		}
		if len(body) > DefaultMaxJSONSize {
			return fmt.Errorf("%w: request body too large (max %d bytes)", ErrFailedToParseJSON, DefaultMaxJSONSize)
		}
		if len(body) == 0 {
			return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
		}

		decoder := json.NewDecoder(bytesReader(body))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}

		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
		}
		return nil
	}
}
