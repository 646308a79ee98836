package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rsvpkit/wedding/pkg/logger"
)

const healthcheckTimeout = 3 * time.Second

// HealthCheckHandler answers ALIVE with no checks (liveness) or READY when
// every check passes (readiness). A failing check answers 503 NOT_READY.
func HealthCheckHandler(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthcheckTimeout)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err), logger.Component("healthcheck"))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
