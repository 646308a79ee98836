package httpserver

import (
	"log/slog"
	"time"
)

type Option func(*config)

func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(c *config) { c.addr = addr }
}

func WithReadHeaderTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadHeaderTimeout: duration must be > 0")
	}
	return func(c *config) { c.readHeaderTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(c *config) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithWriteTimeout: duration must be > 0")
	}
	return func(c *config) { c.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithIdleTimeout: duration must be > 0")
	}
	return func(c *config) { c.idleTimeout = d }
}

func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(c *config) { c.shutdownTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStopHook registers a function run after the listener has shut down,
// e.g. closing the session watcher hub.
func WithStopHook(h func()) Option {
	if h == nil {
		panic("WithStopHook: nil hook")
	}
	return func(c *config) { c.stopHooks = append(c.stopHooks, h) }
}
