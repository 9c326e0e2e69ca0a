package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sotags/sotags-api/internal/api"
	"github.com/sotags/sotags-api/internal/app/storage"
	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/httpclient"
	"github.com/sotags/sotags-api/internal/service"
	"github.com/sotags/sotags-api/internal/sources"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	pkgsync "github.com/sotags/sotags-api/internal/sync"
	"github.com/sotags/sotags-api/internal/sync/coordinator"
	"github.com/sotags/sotags-api/internal/telemetry"
)

const (
	defaultHTTPAddress = ":8080"
	defaultReadTimeout = 10 * time.Second
	defaultIdleTimeout = 60 * time.Second

	// a listing may wait for a whole fetch cycle
	defaultRequestTimeout = config.DefaultSyncTimeout
	defaultWriteTimeout   = defaultRequestTimeout + 15*time.Second

	storeTracerName  = "github.com/sotags/sotags-api/store"
	sourceTracerName = "github.com/sotags/sotags-api/sources"
	syncTracerName   = "github.com/sotags/sotags-api/sync"
)

// TagAppOptions is a function that configures the tag app builder
type TagAppOptions func(*tagAppConfig) error

// tagAppConfig collects everything NewTagApp needs.
// Component overrides exist for testing.
type tagAppConfig struct {
	config *config.Config

	storageFactory storage.Factory
	tagSource      sources.TagSource

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...TagAppOptions) (*tagAppConfig, error) {
	cfg := &tagAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewTagApp builds the application from the given options
func NewTagApp(ctx context.Context, opts ...TagAppOptions) (*TagApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config,
			storage.WithTracer(cfg.tracer(storeTracerName)))
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	tagStore, err := cfg.storageFactory.CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag store: %w", err)
	}

	engine, err := buildSyncEngine(ctx, cfg, tagStore)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	svc := service.New(engine, tagStore, service.WithTracer(cfg.tracer(service.ServiceTracerName)))

	httpServer, err := buildHTTPServer(ctx, cfg, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	var once sync.Once
	cancelFunc := func() {
		once.Do(func() {
			cancel()
			cfg.storageFactory.Cleanup()
		})
	}

	return &TagApp{
		config: cfg.config,
		components: &AppComponents{
			SyncCoordinator: coordinator.New(engine, cfg.config),
			TagService:      svc,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// tracer returns a named tracer, or nil when tracing is not configured
func (b *tagAppConfig) tracer(name string) trace.Tracer {
	if b.tracerProvider == nil {
		return nil
	}
	return b.tracerProvider.Tracer(name)
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds each HTTP request. The server write timeout
// follows it.
func WithRequestTimeout(d time.Duration) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", d)
		}
		cfg.requestTimeout = d
		cfg.writeTimeout = d + 15*time.Second
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithTagSource allows injecting a custom upstream tag source (for testing)
func WithTagSource(src sources.TagSource) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		cfg.tagSource = src
		return nil
	}
}

// WithMeterProvider enables HTTP, sync and tag metrics
func WithMeterProvider(mp metric.MeterProvider) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider enables request and cycle tracing
func WithTracerProvider(tp trace.TracerProvider) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves handler at /metrics
func WithMetricsHandler(h http.Handler) TagAppOptions {
	return func(cfg *tagAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildTagSource builds the StackExchange client from the upstream settings
func buildTagSource(b *tagAppConfig) (sources.TagSource, error) {
	upstream := b.config.Upstream

	apiKey, err := upstream.GetAPIKey()
	if err != nil {
		return nil, err
	}

	client := httpclient.NewDefaultClient(upstream.GetTimeout())
	src := sources.NewStackExchangeSource(client,
		sources.WithBaseURL(upstream.GetBaseURL()),
		sources.WithSite(upstream.GetSite()),
		sources.WithPageSize(upstream.GetPageSize()),
		sources.WithAPIKey(apiKey),
		sources.WithTracer(b.tracer(sourceTracerName)),
	)

	slog.Info("Upstream tag source configured",
		"base_url", upstream.GetBaseURL(),
		"site", upstream.GetSite(),
		"page_size", upstream.GetPageSize(),
		"api_key", apiKey != "")
	return src, nil
}

// buildSyncEngine builds the status tracker, metrics and sync engine
func buildSyncEngine(ctx context.Context, b *tagAppConfig, tagStore store.Store) (pkgsync.Engine, error) {
	slog.Info("Initializing sync components")

	if b.tagSource == nil {
		src, err := buildTagSource(b)
		if err != nil {
			return nil, fmt.Errorf("failed to create tag source: %w", err)
		}
		b.tagSource = src
	}

	persistence, err := b.storageFactory.CreateStatusPersistence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create status persistence: %w", err)
	}

	upstream := b.config.Upstream
	engineOpts := []pkgsync.Option{
		pkgsync.WithMaxTags(upstream.GetMaxTags()),
		pkgsync.WithMaxPages(upstream.GetMaxPages()),
		pkgsync.WithCycleTimeout(b.config.GetSyncTimeout()),
		pkgsync.WithTracker(status.NewTracker(ctx, persistence)),
		pkgsync.WithTracer(b.tracer(syncTracerName)),
	}

	if b.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		tagMetrics, err := telemetry.NewTagMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create tag metrics: %w", err)
		}
		engineOpts = append(engineOpts,
			pkgsync.WithSyncMetrics(syncMetrics),
			pkgsync.WithTagMetrics(tagMetrics),
		)
		slog.Info("Sync metrics enabled")
	}

	engine := pkgsync.New(tagStore, b.tagSource, engineOpts...)
	slog.Info("Sync components initialized successfully",
		"max_tags", upstream.GetMaxTags(),
		"max_pages", upstream.GetMaxPages())
	return engine, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *tagAppConfig,
	svc service.TagService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing see every request, so they go first
	var leading []func(http.Handler) http.Handler
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		leading = append(leading, metricsMiddleware)
		slog.Info("HTTP metrics middleware enabled")
	}
	if b.tracerProvider != nil {
		leading = append(leading, telemetry.TracingMiddleware(b.tracerProvider))
		slog.Info("HTTP tracing middleware enabled")
	}
	middlewares := append(leading, b.middlewares...)

	serverOpts := []api.ServerOption{api.WithMiddlewares(middlewares...)}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	router := api.NewServer(svc, serverOpts...)

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
