package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// IndexMetricsMeterName is the name used for the index data meter
	IndexMetricsMeterName = "github.com/emory-libraries/fedora-indexdata/indexdata"
)

// Outcome labels shared by the index data counters
const (
	OutcomeServed      = "served"
	OutcomeDenied      = "denied"
	OutcomeConfigError = "config_error"
	OutcomeFound       = "found"
	OutcomeNotFound    = "not_found"
	OutcomeTransient   = "transient_error"
)

// IndexMetrics holds the instruments for discovery and object retrieval
type IndexMetrics struct {
	discoveryRequests metric.Int64Counter
	objectRetrievals  metric.Int64Counter
	contentModels     metric.Int64Gauge
}

// NewIndexMetrics creates a new IndexMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewIndexMetrics(provider metric.MeterProvider) (*IndexMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(IndexMetricsMeterName)

	discoveryRequests, err := meter.Int64Counter(
		"indexdata_discovery_requests_total",
		metric.WithDescription("Discovery requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	objectRetrievals, err := meter.Int64Counter(
		"indexdata_object_retrievals_total",
		metric.WithDescription("Repository object retrievals by outcome"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		return nil, err
	}

	contentModels, err := meter.Int64Gauge(
		"indexdata_content_model_groups",
		metric.WithDescription("Number of content model groups in the last discovery response"),
		metric.WithUnit("{group}"),
	)
	if err != nil {
		return nil, err
	}

	return &IndexMetrics{
		discoveryRequests: discoveryRequests,
		objectRetrievals:  objectRetrievals,
		contentModels:     contentModels,
	}, nil
}

// RecordDiscovery counts a discovery request with its outcome
func (m *IndexMetrics) RecordDiscovery(ctx context.Context, outcome string) {
	if m == nil || m.discoveryRequests == nil {
		return
	}
	m.discoveryRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordContentModelGroups records the size of the catalog that was served
func (m *IndexMetrics) RecordContentModelGroups(ctx context.Context, groups int) {
	if m == nil || m.contentModels == nil {
		return
	}
	m.contentModels.Record(ctx, int64(groups))
}

// RecordRetrieval counts an object retrieval with its outcome
func (m *IndexMetrics) RecordRetrieval(ctx context.Context, outcome string) {
	if m == nil || m.objectRetrievals == nil {
		return
	}
	m.objectRetrievals.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
