package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"patientflow/internal/platform/middleware"
	"patientflow/pkg/platform/httputil"
	"patientflow/pkg/platform/middleware/metadata"
	"patientflow/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterConfig collects what the kiosk router serves besides sessions.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        http.Handler
	Health         map[string]HealthCheck
	RequestTimeout time.Duration
}

// NewRouter wires the kiosk API. Session routes get the full middleware
// chain; /healthz and /metrics stay bare for probes and scrapers.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Get("/healthz", healthz(cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(metadata.ClientMetadata)
		r.Use(requesttime.Middleware)
		r.Use(middleware.KioskID(logger))
		r.Use(middleware.Logger(logger))
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		h.Register(r)
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check(ctx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
