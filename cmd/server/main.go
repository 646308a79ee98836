package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rsvpkit/wedding/db"
	"github.com/rsvpkit/wedding/modules/web"
	"github.com/rsvpkit/wedding/pkg/config"
	"github.com/rsvpkit/wedding/pkg/cookie"
	"github.com/rsvpkit/wedding/pkg/email"
	"github.com/rsvpkit/wedding/pkg/httpserver"
	"github.com/rsvpkit/wedding/pkg/logger"
	"github.com/rsvpkit/wedding/pkg/pg"
	"github.com/rsvpkit/wedding/pkg/ratelimiter"
	"github.com/rsvpkit/wedding/pkg/redis"
	"github.com/rsvpkit/wedding/pkg/requestid"
	"github.com/rsvpkit/wedding/svc/dashboard"
	"github.com/rsvpkit/wedding/svc/dispatch"
	"github.com/rsvpkit/wedding/svc/guest"
	"github.com/rsvpkit/wedding/svc/identity"
	"github.com/rsvpkit/wedding/svc/rsvp"
	"github.com/rsvpkit/wedding/svc/session"
)

type appConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"wedding"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`

	HTTP     httpserver.Config
	Store    pg.Config
	Redis    redis.Config
	Email    email.Config
	Identity identity.Config
	Dispatch dispatch.Config
	Web      web.Config
	Cookie   cookie.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), session.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Store.AutoMigrate {
		if err := pg.Migrate(ctx, pool, cfg.Store, db.Migrations, db.Dir, log); err != nil {
			return err
		}
	}
	health := []func(context.Context) error{pg.Healthcheck(pool)}

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		health = append(health, redis.Healthcheck(rdb))
	}

	sender, err := email.NewFromConfig(cfg.Email)
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		log.Warn("email transport not configured; sign-in and bulk email are disabled",
			logger.Component("email"))
		sender = nil
	case err != nil:
		return err
	}

	guests := guest.NewRepository(pool)

	idp, err := identity.NewService(cfg.Identity, guests, identity.NewRepository(pool), sender,
		identity.WithLogger(log))
	if err != nil {
		return err
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithRecorder(dispatch.NewLogRepository(pool)),
		dispatch.WithShutdown(ctx),
	}
	if cfg.Dispatch.BatchGuard {
		var claims dispatch.Claims = dispatch.NewMemoryClaims()
		if rdb != nil {
			claims = dispatch.NewRedisClaims(rdb, "")
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithClaims(claims))
	}
	dispatcher := dispatch.New(cfg.Dispatch, guests, sender, dispatchOpts...)

	cookies, err := cookie.NewFromConfig(cfg.Identity.Secret, cfg.Cookie)
	if err != nil {
		return err
	}

	var limitStore ratelimiter.Store
	if rdb != nil {
		limitStore = ratelimiter.NewRedisStore(rdb, "ratelimit:")
	} else {
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		limitStore = mem
	}

	router, err := web.Router(cfg.Web, web.Deps{
		Identity:   idp,
		Resolver:   session.NewResolver(guests, log),
		RSVP:       rsvp.NewController(guests, rsvp.WithLogger(log)),
		Dashboard:  dashboard.NewService(guests, dispatcher, dashboard.WithLogger(log)),
		Dispatcher: dispatcher,
		SendLog:    dispatch.NewLogRepository(pool),
		Cookies:    cookies,
		LimitStore: limitStore,
		Logger:     log,
		Health:     health,
		Done:       ctx.Done(),
	})
	if err != nil {
		return err
	}

	go cleanupLoop(ctx, idp, cfg.CleanupInterval, log)

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(func() { _ = idp.Events().Close() }),
	)
	return srv.Run(ctx, router)
}

// cleanupLoop purges expired sign-in tokens and sessions.
func cleanupLoop(ctx context.Context, idp *identity.Service, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := idp.Cleanup(ctx)
			if err != nil {
				log.ErrorContext(ctx, "session cleanup failed", logger.Component("identity"), logger.Error(err))
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "expired sessions removed", logger.Component("identity"), logger.Count("removed", int(n)))
			}
		}
	}
}
