package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/handler"
	"github.com/rsvpkit/wedding/pkg/clientip"
	"github.com/rsvpkit/wedding/pkg/cookie"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/ratelimiter"
	"github.com/rsvpkit/wedding/svc/identity"
	"github.com/rsvpkit/wedding/svc/session"
)

const (
	authErrorPath = "/auth/auth-code-error"
	deviceMaxAge  = 400 * 24 * 60 * 60
)

type signInRequest struct {
	Email string `json:"email"`
}

type confirmRequest struct {
	TokenHash string `query:"token_hash"`
	Type      string `query:"type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (rt *routes) authRoutes(r chi.Router) {
	r.With(ratelimiter.Middleware(rt.ipLimit,
		func(r *http.Request) string { return clientip.FromContext(r.Context()) },
		ratelimiter.WithDeniedHandler(func(w http.ResponseWriter, r *http.Request) {
			rt.fail(w, r, core.ErrTooManyRequests)
		}),
	)).Post("/sign-in", wrap(rt.signIn, rt.errors, jsonBody))

	r.Get("/confirm", wrap(rt.confirm, rt.errors, queryArgs))
	r.Post("/refresh", wrap(rt.refresh, rt.errors))
	r.Post("/sign-out", wrap(rt.signOut, rt.errors))
}

func (rt *routes) signIn(ctx handler.Context, req signInRequest) handler.Response {
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr != "" {
		res, err := rt.addrLimit.Allow(ctx, addr)
		if err != nil {
			rt.log.WarnContext(ctx, "sign-in rate limit unavailable",
				logger.Component("web"),
				logger.Error(err),
			)
		} else {
			ratelimiter.SetHeaders(ctx.ResponseWriter(), res)
			if !res.Allowed() {
				return handler.Fail(core.ErrTooManyRequests)
			}
		}
	}

	if err := rt.deps.Identity.RequestSignIn(ctx, req.Email); err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(map[string]string{
		"message": "Check your email for the sign-in link.",
	})
}

// confirm exchanges a magic link for a session and redirects by role.
// Failures redirect to the error page with the provider message.
func (rt *routes) confirm(ctx handler.Context, req confirmRequest) handler.Response {
	w := ctx.ResponseWriter()
	deviceID := rt.ensureDevice(w, ctx.Request())

	sess, err := rt.deps.Identity.Verify(ctx, req.TokenHash, req.Type, deviceID)
	if err != nil {
		rt.log.WarnContext(ctx, "magic link rejected",
			logger.Component("web"),
			logger.Error(err),
		)
		return handler.Redirect(authErrorPath + "?error=" + url.QueryEscape(core.Message(err)))
	}
	rt.setSessionCookies(w, sess)

	if rt.deps.Resolver.Resolve(ctx, &sess.Identity) == session.RoleAdmin {
		return handler.Redirect("/admin")
	}
	return handler.Redirect("/dashboard")
}

func (rt *routes) refresh(ctx handler.Context, _ struct{}) handler.Response {
	r := ctx.Request()
	tok, err := rt.deps.Cookies.Get(r, RefreshCookie)
	if err != nil || tok == "" {
		var req refreshRequest
		if r.ContentLength != 0 {
			if err := jsonBody(r, &req); err != nil {
				return handler.Fail(err)
			}
		}
		tok = req.RefreshToken
	}

	sess, err := rt.deps.Identity.Refresh(ctx, tok)
	if err != nil {
		rt.clearSessionCookies(ctx.ResponseWriter())
		return handler.Fail(err)
	}
	rt.setSessionCookies(ctx.ResponseWriter(), sess)
	return handler.JSON(tokenResponse{
		AccessToken:      sess.AccessToken,
		AccessExpiresAt:  sess.AccessExpiresAt,
		RefreshToken:     sess.RefreshToken,
		RefreshExpiresAt: sess.RefreshExpiresAt,
	})
}

func (rt *routes) signOut(ctx handler.Context, _ struct{}) handler.Response {
	sc := session.FromContext(ctx)
	if sc.Identity != nil {
		if err := rt.deps.Identity.SignOut(ctx, sc.Identity.SessionID); err != nil {
			return handler.Fail(err)
		}
	}
	rt.clearSessionCookies(ctx.ResponseWriter())
	return handler.Redirect("/")
}

// ensureDevice returns the signed device id, issuing one when absent.
func (rt *routes) ensureDevice(w http.ResponseWriter, r *http.Request) string {
	id, err := rt.deps.Cookies.GetSigned(r, DeviceCookie)
	if err == nil {
		if _, perr := uuid.Parse(id); perr == nil {
			return id
		}
	}
	if err != nil && !errors.Is(err, cookie.ErrCookieNotFound) {
		rt.log.WarnContext(r.Context(), "device cookie rejected",
			logger.Component("web"),
			logger.Error(err),
		)
	}
	id = uuid.NewString()
	rt.deps.Cookies.SetSigned(w, DeviceCookie, id, cookie.WithMaxAge(deviceMaxAge))
	return id
}

func (rt *routes) setSessionCookies(w http.ResponseWriter, sess *identity.Session) {
	rt.deps.Cookies.Set(w, AccessCookie, sess.AccessToken,
		cookie.WithMaxAge(maxAge(sess.AccessExpiresAt)))
	rt.deps.Cookies.Set(w, RefreshCookie, sess.RefreshToken,
		cookie.WithMaxAge(maxAge(sess.RefreshExpiresAt)))
}

func (rt *routes) clearSessionCookies(w http.ResponseWriter) {
	rt.deps.Cookies.Delete(w, AccessCookie)
	rt.deps.Cookies.Delete(w, RefreshCookie)
}

func maxAge(t time.Time) int {
	return max(int(time.Until(t).Seconds()), 1)
}
