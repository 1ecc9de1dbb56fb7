// Package indexer provides the HTTP handlers used by the search indexer:
// the discovery document and per-object index data.
package indexer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emory-libraries/fedora-indexdata/internal/access"
	"github.com/emory-libraries/fedora-indexdata/internal/api/common"
	"github.com/emory-libraries/fedora-indexdata/internal/config"
	"github.com/emory-libraries/fedora-indexdata/internal/indexdata"
	"github.com/emory-libraries/fedora-indexdata/internal/telemetry"
)

// ConfigSource provides the configuration currently in effect
type ConfigSource interface {
	GetConfig() *config.Config
}

// Option configures the routes
type Option func(*Routes)

// WithConfigSource enables per-request settings such as protectIndexData
func WithConfigSource(settings ConfigSource) Option {
	return func(r *Routes) {
		r.settings = settings
	}
}

// WithMetrics records denied discovery requests
func WithMetrics(metrics *telemetry.IndexMetrics) Option {
	return func(r *Routes) {
		r.metrics = metrics
	}
}

// Routes holds the index data handlers and their collaborators
type Routes struct {
	service  indexdata.Service
	guard    access.Guard
	settings ConfigSource
	metrics  *telemetry.IndexMetrics
}

// NewRoutes creates a new Routes instance
func NewRoutes(svc indexdata.Service, guard access.Guard, opts ...Option) *Routes {
	routes := &Routes{service: svc, guard: guard}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates the index data router. Both the discovery document and the
// object routes answer with and without a trailing slash.
func Router(svc indexdata.Service, guard access.Guard, opts ...Option) http.Handler {
	routes := NewRoutes(svc, guard, opts...)

	r := chi.NewRouter()
	r.Get("/", routes.indexConfig)
	r.Get("/{id}", routes.indexData)
	r.Get("/{id}/", routes.indexData)

	return r
}

// indexConfig returns the content models and search index URL
func (rt *Routes) indexConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !rt.admit(ctx, w, r, true) {
		return
	}

	cfg, err := rt.service.Describe(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	common.WriteJSONResponse(w, cfg, http.StatusOK)
}

// indexData returns the index field mapping of one object
func (rt *Routes) indexData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Unlisted callers are refused before the id is looked at
	if rt.protectIndexData() && !rt.admit(ctx, w, r, false) {
		return
	}

	pid, err := common.PathParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}

	fields, err := rt.service.IndexData(ctx, pid)
	if err != nil {
		if errors.Is(err, indexdata.ErrObjectUnavailable) {
			common.WriteErrorResponse(w, "object not found: "+pid, http.StatusNotFound)
			return
		}
		writeServiceError(ctx, w, err)
		return
	}

	common.WriteJSONResponse(w, fields, http.StatusOK)
}

// admit applies the allow-list. It writes the response and returns false when
// the request must not proceed. Outcomes count toward the discovery metric
// only for discovery requests.
func (rt *Routes) admit(ctx context.Context, w http.ResponseWriter, r *http.Request, discovery bool) bool {
	denied, err := rt.guard.IsDenied(ctx, r.RemoteAddr)
	if err != nil {
		if discovery {
			rt.metrics.RecordDiscovery(ctx, telemetry.OutcomeConfigError)
		}
		writeServiceError(ctx, w, err)
		return false
	}
	if denied {
		if discovery {
			rt.metrics.RecordDiscovery(ctx, telemetry.OutcomeDenied)
		}
		slog.WarnContext(ctx, "Access denied", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
		common.WriteHTMLResponse(w, access.DeniedMessage, http.StatusForbidden)
		return false
	}
	return true
}

func (rt *Routes) protectIndexData() bool {
	if rt.settings == nil {
		return false
	}
	cfg := rt.settings.GetConfig()
	return cfg != nil && cfg.ProtectIndexData
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, config.ErrConfigurationMissing) {
		slog.ErrorContext(ctx, "Server configuration incomplete", "error", err)
		common.WriteErrorResponse(w, "server configuration error", http.StatusInternalServerError)
		return
	}
	slog.ErrorContext(ctx, "Request failed", "error", err)
	common.WriteErrorResponse(w, "internal server error", http.StatusInternalServerError)
}
