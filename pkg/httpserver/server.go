// Package httpserver runs an http.Server until its context ends and then
// shuts it down gracefully.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rsvpkit/wedding/pkg/logger"
)

type config struct {
	addr              string
	readHeaderTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
	stopHooks         []func()
}

// Server runs an http.Server until its context ends, then shuts down gracefully.
type Server struct {
	cfg  *config
	srv  *http.Server
	mu   sync.Mutex
	once sync.Once
}

// New returns a server with defaults overridden by opts.
func New(opts ...Option) *Server {
	cfg := &config{
		addr:              ":8080",
		readHeaderTimeout: 10 * time.Second,
		shutdownTimeout:   30 * time.Second,
		logger:            logger.Discard(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Server{cfg: cfg}
}

// Run serves handler until ctx is cancelled (typically by a signal), then
// drains in-flight requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, errors.New("server already running"))
	}
	srv := &http.Server{
		Addr:              s.cfg.addr,
		Handler:           handler,
		ReadHeaderTimeout: s.cfg.readHeaderTimeout,
		ReadTimeout:       s.cfg.readTimeout,
		WriteTimeout:      s.cfg.writeTimeout,
		IdleTimeout:       s.cfg.idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.cfg.logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.srv = srv
	s.mu.Unlock()

	s.cfg.logger.InfoContext(ctx, "http server starting", slog.String("addr", s.cfg.addr))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	var runErr error
	select {
	case <-ctx.Done():
		if err := s.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers to return.
// Only the first call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
		for _, h := range s.cfg.stopHooks {
			h()
		}
		s.cfg.logger.InfoContext(ctx, "http server stopped", logger.Error(err))
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}
