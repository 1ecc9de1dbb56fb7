// Package api provides the HTTP server for the index data service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/emory-libraries/fedora-indexdata/internal/access"
	"github.com/emory-libraries/fedora-indexdata/internal/api/indexer"
	"github.com/emory-libraries/fedora-indexdata/internal/indexdata"
	"github.com/emory-libraries/fedora-indexdata/internal/telemetry"
)

// ServerOption configures the API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	indexerOpts    []indexer.Option
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves h on /metrics. A nil handler leaves the route unset.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithConfigSource lets the index data routes read per-request settings
func WithConfigSource(settings indexer.ConfigSource) ServerOption {
	return func(cfg *serverConfig) {
		cfg.indexerOpts = append(cfg.indexerOpts, indexer.WithConfigSource(settings))
	}
}

// WithIndexMetrics records discovery denials
func WithIndexMetrics(metrics *telemetry.IndexMetrics) ServerOption {
	return func(cfg *serverConfig) {
		cfg.indexerOpts = append(cfg.indexerOpts, indexer.WithMetrics(metrics))
	}
}

// NewServer creates and configures the HTTP router with the given service and options
func NewServer(svc indexdata.Service, guard access.Guard, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", HealthRouter(svc))
	r.Mount("/indexdata", indexer.Router(svc, guard, cfg.indexerOpts...))

	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
