// Package clientip resolves the originating client address behind proxies.
package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// GetIP returns the client IP, preferring CDN and proxy headers over
// RemoteAddr. Unparseable values are skipped.
func GetIP(r *http.Request) string {
	for _, h := range []string{"CF-Connecting-IP", "DO-Connecting-IP"} {
		if ip := parseIP(r.Header.Get(h)); ip != "" {
			return ip
		}
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for candidate := range strings.SplitSeq(forwarded, ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}

type contextKey struct{}

func WithContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// FromContext returns the IP stored by Middleware, or "".
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// Middleware resolves the client IP once and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), GetIP(r))))
	})
}
