// Package web mounts the wedding site's HTTP API on a chi router.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rsvpkit/wedding/core"
	"github.com/rsvpkit/wedding/handler"
	"github.com/rsvpkit/wedding/pkg/clientip"
	"github.com/rsvpkit/wedding/pkg/cookie"
	"github.com/rsvpkit/wedding/pkg/httpserver"
	"github.com/rsvpkit/wedding/pkg/jwt"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/ratelimiter"
	"github.com/rsvpkit/wedding/pkg/requestid"
	"github.com/rsvpkit/wedding/svc/dashboard"
	"github.com/rsvpkit/wedding/svc/dispatch"
	"github.com/rsvpkit/wedding/svc/identity"
	"github.com/rsvpkit/wedding/svc/rsvp"
	"github.com/rsvpkit/wedding/svc/session"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
	DeviceCookie  = "device_id"
)

// Config holds the site-level knobs of the HTTP layer.
type Config struct {
	SiteURL        string        `env:"SITE_URL" envDefault:"https://yishanandyitong.wedding"`
	SignInBurst    int           `env:"SIGN_IN_RATE_BURST" envDefault:"5"`
	SignInInterval time.Duration `env:"SIGN_IN_RATE_INTERVAL" envDefault:"1m"`
}

// IdentityProvider is the part of identity.Service the routes use.
type IdentityProvider interface {
	session.Source
	session.Authenticator
	RequestSignIn(ctx context.Context, email string) error
	Verify(ctx context.Context, tokenHash, typ, deviceID string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	SignOut(ctx context.Context, sessionID uuid.UUID) error
}

// RSVPController is the part of rsvp.Controller the routes use.
type RSVPController interface {
	Load(ctx context.Context, email string) (*rsvp.Result, error)
	Submit(ctx context.Context, email string, f rsvp.Form) (*rsvp.Result, error)
	UpdateProfile(ctx context.Context, email string, f rsvp.ProfileForm) (*rsvp.Result, error)
}

// Dashboard is the admin overview and audience-based send.
type Dashboard interface {
	Overview(ctx context.Context) (*dashboard.Overview, error)
	Send(ctx context.Context, caller *identity.Identity, t dispatch.Type, audience dashboard.Audience) ([]dispatch.Outcome, error)
}

// Dispatcher is the bulk sender with its preview and status checks.
type Dispatcher interface {
	Authorize(ctx context.Context, caller *identity.Identity) error
	Dispatch(ctx context.Context, caller *identity.Identity, req dispatch.Request) ([]dispatch.Outcome, error)
	Preview(ctx context.Context, t dispatch.Type, name string) (dispatch.Message, error)
	TransportStatus(ctx context.Context) error
}

// SendLog reads the most recent send outcomes.
type SendLog interface {
	Recent(ctx context.Context, limit int) ([]dispatch.LogEntry, error)
}

// Deps are the services behind the routes. SendLog and Health are optional.
type Deps struct {
	Identity   IdentityProvider
	Resolver   *session.Resolver
	RSVP       RSVPController
	Dashboard  Dashboard
	Dispatcher Dispatcher
	SendLog    SendLog
	Cookies    *cookie.Manager
	// LimitStore backs the sign-in rate limits; nil means in-memory.
	LimitStore ratelimiter.Store
	Logger     *slog.Logger
	Health     []func(context.Context) error
	// Done ends open session streams, e.g. on server shutdown.
	Done <-chan struct{}
}

type routes struct {
	cfg       Config
	deps      Deps
	log       *slog.Logger
	errors    handler.ErrorHandler[handler.Context]
	ipLimit   *ratelimiter.Bucket
	addrLimit *ratelimiter.Bucket
}

// Router builds the complete HTTP handler.
func Router(cfg Config, deps Deps) (http.Handler, error) {
	if deps.Identity == nil || deps.Resolver == nil || deps.Cookies == nil {
		return nil, errors.New("web: identity, resolver and cookies are required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	store := deps.LimitStore
	if store == nil {
		store = ratelimiter.NewMemoryStore()
	}
	limit := ratelimiter.Config{
		Capacity:       max(cfg.SignInBurst, 1),
		RefillRate:     1,
		RefillInterval: max(cfg.SignInInterval, time.Second),
	}
	ipLimit, err := ratelimiter.NewBucket(store, limit, ratelimiter.WithKeyPrefix("signin:ip:"))
	if err != nil {
		return nil, err
	}
	addrLimit, err := ratelimiter.NewBucket(store, limit, ratelimiter.WithKeyPrefix("signin:email:"))
	if err != nil {
		return nil, err
	}

	rt := &routes{
		cfg:       cfg,
		deps:      deps,
		log:       log,
		errors:    handler.NewErrorHandler(log),
		ipLimit:   ipLimit,
		addrLimit: addrLimit,
	}

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		clientip.Middleware,
		middleware.Recoverer,
		session.Middleware(deps.Identity, deps.Resolver,
			jwt.FirstOf(jwt.BearerTokenExtractor, jwt.CookieTokenExtractor(AccessCookie)), log),
		requestLogger(log),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) { rt.fail(w, r, core.ErrRouteNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { rt.fail(w, r, core.ErrMethodNotAllowed) })

	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, deps.Health...))

	r.Route("/auth", rt.authRoutes)
	r.Route("/api", func(api chi.Router) {
		rt.sessionRoutes(api)
		if deps.RSVP != nil {
			rt.rsvpRoutes(api)
		}
		if deps.Dispatcher != nil {
			api.With(rt.authorizeSend).Post("/send-email", wrap(rt.sendEmail, rt.errors, jsonBody))
		}
		api.Route("/admin", rt.adminRoutes)
	})

	return r, nil
}

// fail renders err through the logging error handler outside handler.Wrap.
func (rt *routes) fail(w http.ResponseWriter, r *http.Request, err error) {
	rt.errors(handler.NewContext(w, r), err)
}

func wrap[R any](h handler.HandlerFunc[handler.Context, R], eh handler.ErrorHandler[handler.Context], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](eh),
	)
}
