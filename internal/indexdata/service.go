// Package indexdata provides the discovery document and per-object index
// field mappings consumed by the search indexer.
package indexdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
	"github.com/emory-libraries/fedora-indexdata/internal/contentmodel"
	"github.com/emory-libraries/fedora-indexdata/internal/fedora"
	"github.com/emory-libraries/fedora-indexdata/internal/otel"
	"github.com/emory-libraries/fedora-indexdata/internal/telemetry"
	"github.com/emory-libraries/fedora-indexdata/internal/versions"
)

const (
	// ServiceTracerName is the name used for the index data service tracer
	ServiceTracerName = "github.com/emory-libraries/fedora-indexdata/internal/indexdata"
)

// ErrObjectUnavailable is returned when an object could not be retrieved or
// projected, whatever the cause
var ErrObjectUnavailable = errors.New("object unavailable")

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service defines the index data operations
type Service interface {
	// Describe returns the content model catalog and the search index URL
	Describe(ctx context.Context) (*IndexConfig, error)

	// IndexData returns the index field mapping of the object pid.
	// Retrieval failures wrap ErrObjectUnavailable.
	IndexData(ctx context.Context, pid string) (Fields, error)

	// CheckReadiness checks that the repository is reachable and speaks a
	// supported REST API version
	CheckReadiness(ctx context.Context) error
}

// IndexConfig is the discovery document
type IndexConfig struct {
	ContentModels [][]string `json:"CONTENT_MODELS"`
	SolrURL       string     `json:"SOLR_URL"`
}

// ConfigSource provides the configuration currently in effect
type ConfigSource interface {
	GetConfig() *config.Config
}

type options struct {
	tracer  trace.Tracer
	metrics *telemetry.IndexMetrics
}

// Option is a functional option for configuring the service
type Option func(*options)

// WithTracer sets the tracer for the service
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMetrics sets the discovery and retrieval counters
func WithMetrics(metrics *telemetry.IndexMetrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

type service struct {
	settings  ConfigSource
	registry  *contentmodel.Registry
	connector fedora.Connector
	projector *Projector
	tracer    trace.Tracer
	metrics   *telemetry.IndexMetrics
}

// New creates the index data service
func New(
	settings ConfigSource,
	registry *contentmodel.Registry,
	connector fedora.Connector,
	opts ...Option,
) (Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("config source is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("content model registry is required")
	}
	if connector == nil {
		return nil, fmt.Errorf("repository connector is required")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return &service{
		settings:  settings,
		registry:  registry,
		connector: connector,
		projector: NewProjector(registry),
		tracer:    o.tracer,
		metrics:   o.metrics,
	}, nil
}

func (s *service) Describe(ctx context.Context) (*IndexConfig, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "indexdata.Describe")
	defer span.End()

	catalog := s.registry.Catalog()

	solrURL, err := s.settings.GetConfig().GetSolrURL()
	if err != nil {
		otel.RecordError(span, err)
		s.metrics.RecordDiscovery(ctx, telemetry.OutcomeConfigError)
		return nil, err
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(catalog)))
	s.metrics.RecordDiscovery(ctx, telemetry.OutcomeServed)
	s.metrics.RecordContentModelGroups(ctx, len(catalog))

	return &IndexConfig{ContentModels: catalog, SolrURL: solrURL}, nil
}

func (s *service) IndexData(ctx context.Context, pid string) (Fields, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "indexdata.IndexData",
		trace.WithAttributes(otel.AttrObjectPID.String(pid)),
	)
	defer span.End()

	client, err := s.connector.Connect(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to connect to repository: %w", err)
	}

	result := client.GetObject(ctx, pid)
	span.SetAttributes(otel.AttrOutcome.String(result.Status.String()))
	s.metrics.RecordRetrieval(ctx, retrievalOutcome(result.Status))

	if result.Status != fedora.StatusFound {
		otel.RecordError(span, result.Err)
		slog.InfoContext(ctx, "Object unavailable",
			"pid", pid,
			"outcome", result.Status.String(),
			"error", result.Err,
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrObjectUnavailable, pid, result.Err)
	}

	span.SetAttributes(attribute.StringSlice(string(otel.AttrContentModels), result.Object.ContentModels))

	fields, typeName, err := s.projector.Project(result.Object)
	if typeName != "" {
		span.SetAttributes(otel.AttrObjectType.String(typeName))
	}
	if err != nil {
		otel.RecordError(span, err)
		slog.WarnContext(ctx, "Index projection failed", "pid", pid, "type", typeName, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrObjectUnavailable, pid, err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(fields)))
	return fields, nil
}

func (s *service) CheckReadiness(ctx context.Context) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "indexdata.CheckReadiness")
	defer span.End()

	client, err := s.connector.Connect(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to connect to repository: %w", err)
	}
	info, err := client.Describe(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("repository not ready: %w", err)
	}
	if err := versions.CheckRepositoryVersion(info.Version); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("repository not supported: %w", err)
	}
	return nil
}

func retrievalOutcome(status fedora.Status) string {
	switch status {
	case fedora.StatusFound:
		return telemetry.OutcomeFound
	case fedora.StatusNotFound:
		return telemetry.OutcomeNotFound
	default:
		return telemetry.OutcomeTransient
	}
}
