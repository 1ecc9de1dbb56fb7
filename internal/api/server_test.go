package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/emory-libraries/fedora-indexdata/internal/access"
	accessmocks "github.com/emory-libraries/fedora-indexdata/internal/access/mocks"
	"github.com/emory-libraries/fedora-indexdata/internal/api"
	"github.com/emory-libraries/fedora-indexdata/internal/config"
	"github.com/emory-libraries/fedora-indexdata/internal/contentmodel"
	"github.com/emory-libraries/fedora-indexdata/internal/fedora"
	"github.com/emory-libraries/fedora-indexdata/internal/indexdata"
	"github.com/emory-libraries/fedora-indexdata/internal/indexdata/mocks"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// health never reaches the service
	server := api.NewServer(mocks.NewMockService(ctrl), accessmocks.NewMockGuard(ctrl))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readinessErr   error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "service ready",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ready"}`,
		},
		{
			name:           "repository unreachable",
			readinessErr:   errors.New("repository not ready: connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"error":"service not ready: repository not ready: connection refused"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			svc := mocks.NewMockService(ctrl)
			svc.EXPECT().CheckReadiness(gomock.Any()).Return(tt.readinessErr)

			rr := httptest.NewRecorder()
			api.NewServer(svc, accessmocks.NewMockGuard(ctrl)).
				ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := httptest.NewRecorder()
	api.NewServer(mocks.NewMockService(ctrl), accessmocks.NewMockGuard(ctrl)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var info map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("indexdata_http_requests_total 1\n"))
	})

	tests := []struct {
		name       string
		opts       []api.ServerOption
		wantStatus int
	}{
		{name: "not mounted by default", wantStatus: http.StatusNotFound},
		{name: "mounted with handler", opts: []api.ServerOption{api.WithMetricsHandler(metrics)}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			server := api.NewServer(mocks.NewMockService(ctrl), accessmocks.NewMockGuard(ctrl), tt.opts...)
			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	var called bool
	mark := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	server := api.NewServer(mocks.NewMockService(ctrl), accessmocks.NewMockGuard(ctrl), api.WithMiddlewares(mark))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)
}

//nolint:paralleltest // replaces the default logger
func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	handler := middleware.RequestID(api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/indexdata/bogus:testpid/", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request", entry["msg"])
	assert.Equal(t, "/indexdata/bogus:testpid/", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.Equal(t, "10.0.0.9:4000", entry["remote_addr"])
	assert.NotEmpty(t, entry["request_id"])
}

const (
	fakeProfile = `<objectProfile xmlns="http://www.fedora.info/definitions/1/0/access/" pid="demo:1">
  <objLabel>test object</objLabel>
  <objOwnerId>tester</objOwnerId>
  <objModels><model>info:fedora/emory-control:SimpleCModel</model></objModels>
  <objCreateDate>2011-03-04T15:21:04.142Z</objCreateDate>
  <objLastModDate>2011-03-05T09:00:00.000Z</objLastModDate>
  <objState>A</objState>
</objectProfile>`
	fakeDatastreams = `<objectDatastreams xmlns="http://www.fedora.info/definitions/1/0/access/" pid="demo:1">
  <datastream dsid="DC" label="Dublin Core" mimeType="text/xml"/>
</objectDatastreams>`
	fakeDC = `<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/"
    xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>test object</dc:title>
</oai_dc:dc>`
)

// newEndToEndServer wires the real guard and service against a fake repository
func newEndToEndServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()

	repo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := map[string]string{
			"/fedora/objects/demo:1":                        fakeProfile,
			"/fedora/objects/demo:1/datastreams":            fakeDatastreams,
			"/fedora/objects/demo:1/datastreams/DC/content": fakeDC,
		}[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(repo.Close)

	cfg.Fedora.BaseURL = repo.URL + "/fedora/"
	settings := config.NewStaticManager(cfg)

	registry, err := contentmodel.NewRegistry(
		contentmodel.NewDeclaredType("simple", "info:fedora/emory-control:SimpleCModel"),
	)
	require.NoError(t, err)

	svc, err := indexdata.New(settings, registry, fedora.NewConnector(settings, repo.Client()))
	require.NoError(t, err)
	guard, err := access.NewGuard(settings)
	require.NoError(t, err)

	return api.NewServer(svc, guard, api.WithConfigSource(settings))
}

func TestEndToEnd_Discovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    *config.AllowList
		wantStatus int
	}{
		{name: "listed loopback", allowed: &config.AllowList{Addresses: []string{"127.0.0.1"}}, wantStatus: http.StatusOK},
		{name: "any address", allowed: &config.AllowList{Any: true}, wantStatus: http.StatusOK},
		{name: "unlisted caller", allowed: &config.AllowList{Addresses: []string{"0.13.23.134"}}, wantStatus: http.StatusForbidden},
		{name: "missing allow-list", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newEndToEndServer(t, &config.Config{
				SolrURL:    "http://localhost:8983/solr/",
				AllowedIPs: tt.allowed,
			})

			req := httptest.NewRequest(http.MethodGet, "/indexdata/", nil)
			req.RemoteAddr = "127.0.0.1:40000"
			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			switch tt.wantStatus {
			case http.StatusOK:
				assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
				assert.JSONEq(t,
					`{"CONTENT_MODELS":[["info:fedora/emory-control:SimpleCModel"]],"SOLR_URL":"http://localhost:8983/solr/"}`,
					rr.Body.String())
			case http.StatusForbidden:
				assert.Equal(t, "text/html", rr.Header().Get("Content-Type"))
				assert.Equal(t, "Access to this web service was denied.", rr.Body.String())
			}
		})
	}
}

func TestEndToEnd_IndexData(t *testing.T) {
	t.Parallel()

	server := newEndToEndServer(t, &config.Config{SolrURL: "http://solr/"})

	for _, path := range []string{"/indexdata/demo:1/", "/indexdata/demo:1"} {
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fields))
		assert.Equal(t, "demo:1", fields["pid"])
		assert.Equal(t, "test object", fields["label"])
		assert.Equal(t, []any{"tester"}, fields["owner"])
		assert.Equal(t, []any{"info:fedora/emory-control:SimpleCModel"}, fields["content_model"])
	}

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/indexdata/bogus:testpid/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
