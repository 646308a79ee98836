package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/pkg/jwt"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/svc/identity"
)

// Authenticator validates an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*identity.Identity, error)
}

// ErrorFunc renders a rejected request.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the session once per request. Missing or invalid
// tokens yield an anonymous context; the request always proceeds.
func Middleware(auth Authenticator, resolver *Resolver, extract jwt.TokenExtractorFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := Context{Role: RoleAnonymous}

			if tok, err := extract(r); err == nil && tok != "" {
				id, err := auth.Authenticate(r.Context(), tok)
				switch {
				case err == nil:
					sc = resolver.ResolveContext(r.Context(), id)
				case core.KindOf(err) != core.KindUnauthorized:
					log.WarnContext(r.Context(), "session authentication failed",
						logger.Component("session"),
						logger.Error(err),
					)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), sc)))
		})
	}
}

// RequireGuest admits any signed-in identity.
func RequireGuest(onDenied ErrorFunc) func(http.Handler) http.Handler {
	return require(onDenied, func(sc Context) bool { return sc.Role.IsSignedIn() },
		"Please sign in to continue.")
}

// RequireAdmin admits admins only. A degraded resolution is denied.
func RequireAdmin(onDenied ErrorFunc) func(http.Handler) http.Handler {
	return require(onDenied, func(sc Context) bool { return sc.Role.IsAdmin() && !sc.Degraded },
		"Access denied. Admin privileges required.")
}

func require(onDenied ErrorFunc, allow func(Context) bool, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(FromContext(r.Context())) {
				onDenied(w, r, core.Unauthorized(msg, nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
