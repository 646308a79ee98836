package jwt

import (
	"errors"
	"net/http"
	"strings"
)

// TokenExtractorFunc pulls a raw token out of a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrTokenNotFound
	}
	return strings.TrimSpace(token), nil
}

func CookieTokenExtractor(cookieName string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		c, err := r.Cookie(cookieName)
		if err != nil || c.Value == "" {
			return "", ErrTokenNotFound
		}
		return c.Value, nil
	}
}

// FirstOf tries extractors in order and returns the first token found.
func FirstOf(extractors ...TokenExtractorFunc) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		for _, extract := range extractors {
			token, err := extract(r)
			if err == nil {
				return token, nil
			}
			if !errors.Is(err, ErrTokenNotFound) {
				return "", err
			}
		}
		return "", ErrTokenNotFound
	}
}
