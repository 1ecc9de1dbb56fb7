// Package fedora is a read-only client for the Fedora Commons 3 REST API.
package fedora

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client,Connector

const (
	// DefaultTimeout bounds every repository request
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (100MB)
	MaxResponseSize = 100 * 1024 * 1024

	// UserAgent is the user agent string for repository requests
	UserAgent = "fedora-indexdata/1.0"
)

// Client reads objects from a repository
type Client interface {
	// GetObject retrieves the object profile, datastream list and the DC and
	// RELS-EXT datastreams of pid
	GetObject(ctx context.Context, pid string) Result

	// Describe returns the repository name and version from its describe request
	Describe(ctx context.Context) (*RepositoryInfo, error)
}

// Connector opens a Client for the repository settings in effect at call time
type Connector interface {
	Connect(ctx context.Context) (Client, error)
}

// Option configures an HTTP client
type Option func(*httpClient)

// WithCredentials sets HTTP basic auth credentials. An empty username disables auth.
func WithCredentials(username, password string) Option {
	return func(c *httpClient) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds each request. Zero keeps DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *httpClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient sets the underlying HTTP client, typically one shared
// between connections and built by NewInstrumentedHTTPClient
func WithHTTPClient(client *http.Client) Option {
	return func(c *httpClient) {
		if client != nil {
			c.client = client
		}
	}
}

type httpClient struct {
	baseURL  string
	client   *http.Client
	username string
	password string
	timeout  time.Duration
}

// NewClient creates a client for the repository rooted at baseURL
// (for example http://localhost:8080/fedora/)
func NewClient(baseURL string, opts ...Option) (Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid repository URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid repository URL %q: scheme must be http or https", baseURL)
	}

	c := &httpClient{
		baseURL: strings.TrimSuffix(parsed.String(), "/"),
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewInstrumentedHTTPClient returns an HTTP client whose transport records
// client spans and metrics for every repository call
func NewInstrumentedHTTPClient(tp trace.TracerProvider, mp metric.MeterProvider) *http.Client {
	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	if mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(mp))
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
	}
}

func (c *httpClient) GetObject(ctx context.Context, pid string) Result {
	if strings.TrimSpace(pid) == "" {
		return NotFound(fmt.Errorf("object pid is required"))
	}

	data, err := c.get(ctx, c.endpoint("objects", pid)+"?format=xml")
	if err != nil {
		return failed(err)
	}
	profile, err := parseProfile(data)
	if err != nil {
		return TransientError(err)
	}

	obj := &Object{
		PID:           pid,
		Label:         profile.Label,
		OwnerID:       profile.OwnerID,
		State:         profile.State,
		ContentModels: profile.Models,
		Created:       profile.CreateDate,
		LastModified:  profile.LastModified,
	}
	if profile.PID != "" {
		obj.PID = profile.PID
	}

	data, err = c.get(ctx, c.endpoint("objects", pid, "datastreams")+"?format=xml")
	if err != nil {
		return failed(err)
	}
	if obj.DatastreamIDs, err = parseDatastreamIDs(data); err != nil {
		return TransientError(err)
	}

	if obj.HasDatastream(DublinCoreDatastream) {
		data, err = c.get(ctx, c.endpoint("objects", pid, "datastreams", DublinCoreDatastream, "content"))
		if err != nil {
			return failed(err)
		}
		if obj.DublinCore, err = parseDublinCore(data); err != nil {
			return TransientError(err)
		}
	}

	if obj.HasDatastream(RelsExtDatastream) {
		data, err = c.get(ctx, c.endpoint("objects", pid, "datastreams", RelsExtDatastream, "content"))
		if err != nil {
			return failed(err)
		}
		if obj.Relations, err = parseRelations(data, obj.URI()); err != nil {
			return TransientError(err)
		}
	}

	return Found(obj)
}

func (c *httpClient) Describe(ctx context.Context) (*RepositoryInfo, error) {
	data, err := c.get(ctx, c.endpoint("describe")+"?xml=true")
	if err != nil {
		return nil, err
	}
	return parseRepositoryInfo(data)
}

// endpoint joins path segments onto the base URL, escaping each one so a pid
// can never address another resource
func (c *httpClient) endpoint(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (c *httpClient) get(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/xml, application/xml")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		slog.DebugContext(ctx, "Repository request failed", "url", target, "status", resp.StatusCode)
		return nil, NewHTTPError(resp.StatusCode, target, resp.Status)
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, MaxResponseSize)
	}

	// +1 to detect if the limit was exceeded
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return body, nil
}
