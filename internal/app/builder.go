package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/emory-libraries/fedora-indexdata/internal/access"
	"github.com/emory-libraries/fedora-indexdata/internal/api"
	"github.com/emory-libraries/fedora-indexdata/internal/config"
	"github.com/emory-libraries/fedora-indexdata/internal/contentmodel"
	"github.com/emory-libraries/fedora-indexdata/internal/fedora"
	"github.com/emory-libraries/fedora-indexdata/internal/indexdata"
	"github.com/emory-libraries/fedora-indexdata/internal/telemetry"
	"github.com/emory-libraries/fedora-indexdata/internal/versions"
)

const (
	defaultHTTPAddress     = ":8080"
	defaultRequestTimeout  = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultGracefulTimeout = 30 * time.Second
)

// IndexDataAppOptions is a function that configures the index data app builder
type IndexDataAppOptions func(*indexDataAppConfig) error

// indexDataAppConfig collects the builder inputs.
// Overrides exist primarily for tests; production uses the defaults.
type indexDataAppConfig struct {
	settings config.Manager

	// Optional component overrides
	objectTypes []contentmodel.ObjectType
	connector   fedora.Connector
	guard       access.Guard
	telemetry   *telemetry.Telemetry

	// HTTP server options
	address         string
	middlewares     []func(http.Handler) http.Handler
	middlewaresSet  bool
	requestTimeout  time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	gracefulTimeout time.Duration
}

func baseConfig(opts ...IndexDataAppOptions) (*indexDataAppConfig, error) {
	cfg := &indexDataAppConfig{
		address:         defaultHTTPAddress,
		requestTimeout:  defaultRequestTimeout,
		readTimeout:     defaultReadTimeout,
		writeTimeout:    defaultWriteTimeout,
		idleTimeout:     defaultIdleTimeout,
		gracefulTimeout: defaultGracefulTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewIndexDataApp wires the registry, repository connector, guard, service and
// HTTP server from the given options
func NewIndexDataApp(
	ctx context.Context,
	opts ...IndexDataAppOptions,
) (*IndexDataApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.settings == nil {
		return nil, fmt.Errorf("configuration manager is required")
	}

	components, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components)
	if err != nil {
		if shutdownErr := components.Telemetry.Shutdown(ctx); shutdownErr != nil {
			slog.Warn("Failed to shut down telemetry", "error", shutdownErr)
		}
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &IndexDataApp{
		settings:        cfg.settings,
		components:      components,
		httpServer:      httpServer,
		gracefulTimeout: cfg.gracefulTimeout,
	}, nil
}

// WithConfigManager sets the source of the active configuration
func WithConfigManager(m config.Manager) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		cfg.settings = m
		return nil
	}
}

// WithConfig serves a fixed configuration without watching a file
func WithConfig(c *config.Config) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		if c == nil {
			return fmt.Errorf("config cannot be nil")
		}
		cfg.settings = config.NewStaticManager(c)
		return nil
	}
}

// WithObjectTypes registers object types ahead of the ones declared in configuration
func WithObjectTypes(types ...contentmodel.ObjectType) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		cfg.objectTypes = append(cfg.objectTypes, types...)
		return nil
	}
}

// WithConnector allows injecting a custom repository connector (for testing)
func WithConnector(c fedora.Connector) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		cfg.connector = c
		return nil
	}
}

// WithGuard allows injecting a custom access guard (for testing)
func WithGuard(g access.Guard) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		cfg.guard = g
		return nil
	}
}

// WithTelemetry uses already initialized telemetry providers
func WithTelemetry(t *telemetry.Telemetry) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares. Calling it with no
// arguments serves without any of them.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		cfg.middlewares = mw
		cfg.middlewaresSet = true
		return nil
	}
}

// WithRequestTimeout bounds the time a handler may spend on one request
func WithRequestTimeout(d time.Duration) IndexDataAppOptions {
	return func(cfg *indexDataAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// buildComponents wires everything except the HTTP server
func buildComponents(ctx context.Context, b *indexDataAppConfig) (*AppComponents, error) {
	slog.Info("Initializing service components")

	current := b.settings.GetConfig()

	tel := b.telemetry
	if tel == nil {
		var err error
		tel, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(withVersion(current.Telemetry)))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	registry, err := InitializeObjectTypes(current, b.objectTypes...)
	if err != nil {
		return nil, err
	}

	connector := b.connector
	if connector == nil {
		httpClient := fedora.NewInstrumentedHTTPClient(tel.TracerProvider(), tel.MeterProvider())
		connector = fedora.NewConnector(b.settings, httpClient)
	}

	guard := b.guard
	if guard == nil {
		guard, err = access.NewGuard(b.settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create access guard: %w", err)
		}
	}

	indexMetrics, err := telemetry.NewIndexMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create index metrics: %w", err)
	}

	svc, err := indexdata.New(b.settings, registry, connector,
		indexdata.WithTracer(tel.TracerProvider().Tracer(indexdata.ServiceTracerName)),
		indexdata.WithMetrics(indexMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create index data service: %w", err)
	}

	slog.Info("Service components initialized successfully")
	return &AppComponents{
		Registry:  registry,
		Service:   svc,
		Guard:     guard,
		Metrics:   indexMetrics,
		Telemetry: tel,
	}, nil
}

// NewComponents builds the components without an HTTP server. One-shot CLI
// commands use it to call the service directly.
func NewComponents(ctx context.Context, opts ...IndexDataAppOptions) (*AppComponents, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.settings == nil {
		return nil, fmt.Errorf("configuration manager is required")
	}
	return buildComponents(ctx, cfg)
}

// withVersion stamps the build version on the telemetry resource when the
// configuration leaves it unset
func withVersion(tc *telemetry.Config) *telemetry.Config {
	if tc == nil || tc.ServiceVersion != "" {
		return tc
	}
	stamped := *tc
	stamped.ServiceVersion = versions.Version
	return &stamped
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *indexDataAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if !b.middlewaresSet {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			access.TrustedForwarding(b.settings),
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	tel := components.Telemetry

	// Metrics and tracing go first so rejected requests are observed too
	metricsMiddleware, err := telemetry.MetricsMiddleware(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(tel.TracerProvider()),
		metricsMiddleware,
	}, b.middlewares...)

	router := api.NewServer(components.Service, components.Guard,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(tel.MetricsHandler()),
		api.WithConfigSource(b.settings),
		api.WithIndexMetrics(components.Metrics),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
