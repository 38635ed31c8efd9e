package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/mailscheduler/pkg/logger"
)

// Check reports the health of one dependency.
type Check func(context.Context) error

// HealthCheckHandler serves liveness and readiness checks.
//
// With no checks it answers 200 "ALIVE". Otherwise every check runs against the
// request context; all passing gives 200 "READY", any failure 503 "NOT_READY".
func HealthCheckHandler(log *slog.Logger, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
			return
		}

		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed",
					slog.String("check", name),
					logger.Error(err),
				)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
