package ratelimiter

import (
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
)

const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// Composite joins non-empty keys with ":"; keys longer than 64 chars are
// replaced by their FNV-1a hash.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		combined := strings.Join(parts, ":")
		if len(combined) <= maxKeyLength {
			return combined
		}
		h := fnv.New64a()
		h.Write([]byte(combined))
		return strconv.FormatUint(h.Sum64(), 36)
	}
}

// Static returns a KeyFunc producing a fixed namespace, e.g. the route name.
func Static(key string) KeyFunc {
	return func(*http.Request) string { return key }
}

// SetHeaders writes the X-RateLimit-* headers, plus Retry-After when denied.
func SetHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed() {
		if retryAfter := int(result.RetryAfter().Seconds()); retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
	}
}

type middlewareConfig struct {
	onDenied func(w http.ResponseWriter, r *http.Request)
	onError  func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareOption func(*middlewareConfig)

func WithDeniedHandler(h func(w http.ResponseWriter, r *http.Request)) MiddlewareOption {
	return func(c *middlewareConfig) { c.onDenied = h }
}

// WithErrorHandler handles store failures. The default fails open.
func WithErrorHandler(h func(w http.ResponseWriter, r *http.Request, err error)) MiddlewareOption {
	return func(c *middlewareConfig) { c.onError = h }
}

// Middleware limits requests per key.
func Middleware(limiter RateLimiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		onDenied: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				if cfg.onError != nil {
					cfg.onError(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			SetHeaders(w, result)
			if !result.Allowed() {
				cfg.onDenied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
