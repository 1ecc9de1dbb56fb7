package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader, scopeName string) []metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name == scopeName {
			return scope.Metrics
		}
	}
	return nil
}

func TestNewHTTPMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewHTTPMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewHTTPMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		assert.NotNil(t, metrics.requestDuration)
		assert.NotNil(t, metrics.requestsTotal)
		assert.NotNil(t, metrics.activeRequests)
	})
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	t.Parallel()

	t.Run("passes through when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *HTTPMetrics
		wrapped := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	})

	t.Run("labels requests with the route pattern", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewHTTPMetrics(mp)
		require.NoError(t, err)

		r := chi.NewRouter()
		r.Use(metrics.Middleware)
		r.Get("/indexdata/{id}/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/indexdata/bogus:testpid/", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)

		var found bool
		for _, m := range collect(t, reader, HTTPMetricsMeterName) {
			if m.Name != "indexdata_http_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)

			route, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("route"))
			status, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("status_code"))
			assert.Equal(t, "/indexdata/{id}/", route.AsString())
			assert.Equal(t, "404", status.AsString())
			found = true
		}
		assert.True(t, found, "expected request counter to be recorded")
	})
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	mw, err := MetricsMiddleware(nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestIndexMetrics(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *IndexMetrics
		metrics.RecordDiscovery(context.Background(), OutcomeServed)
		metrics.RecordRetrieval(context.Background(), OutcomeNotFound)
		metrics.RecordContentModelGroups(context.Background(), 3)
	})

	t.Run("records outcomes", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewIndexMetrics(mp)
		require.NoError(t, err)

		ctx := context.Background()
		metrics.RecordDiscovery(ctx, OutcomeServed)
		metrics.RecordDiscovery(ctx, OutcomeDenied)
		metrics.RecordRetrieval(ctx, OutcomeFound)
		metrics.RecordRetrieval(ctx, OutcomeTransient)
		metrics.RecordContentModelGroups(ctx, 2)

		names := map[string]bool{}
		for _, m := range collect(t, reader, IndexMetricsMeterName) {
			names[m.Name] = true
			if m.Name == "indexdata_discovery_requests_total" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				assert.Len(t, sum.DataPoints, 2)
			}
		}
		assert.True(t, names["indexdata_discovery_requests_total"])
		assert.True(t, names["indexdata_object_retrievals_total"])
		assert.True(t, names["indexdata_content_model_groups"])
	})
}
