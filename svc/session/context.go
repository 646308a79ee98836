package session

import (
	"context"
	"log/slog"

	"github.com/rsvpkit/wedding/svc/guest"
	"github.com/rsvpkit/wedding/svc/identity"
)

// Context is the resolved session of one request. It is injected by
// Middleware and passed to components explicitly.
type Context struct {
	Identity *identity.Identity
	Guest    *guest.Guest // nil when anonymous or degraded
	Role     Role
	Degraded bool // role lookup failed; Role fell back to guest
}

// Email is the signed-in address, or "" when anonymous.
func (c Context) Email() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.Email
}

type contextKey struct{}

// WithContext stores sc for FromContext.
func WithContext(ctx context.Context, sc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext returns the request's session, or an anonymous one.
func FromContext(ctx context.Context) Context {
	sc, ok := ctx.Value(contextKey{}).(Context)
	if !ok || sc.Role == "" {
		return Context{Role: RoleAnonymous}
	}
	return sc
}

// LoggerExtractor adds the signed-in email and role to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		sc, ok := ctx.Value(contextKey{}).(Context)
		if !ok || sc.Identity == nil {
			return slog.Attr{}, false
		}
		return slog.Group("session",
			slog.String("email", sc.Identity.Email),
			slog.String("role", sc.Role.String()),
		), true
	}
}
