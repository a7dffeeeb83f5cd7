package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/detectq/config"
	awsx "github.com/target/detectq/internal/adapters/aws"
	"github.com/target/detectq/internal/adapters/metricsink"
	"github.com/target/detectq/internal/adapters/monitor"
	"github.com/target/detectq/internal/adapters/oidc"
	"github.com/target/detectq/internal/inbound"
	"github.com/target/detectq/internal/service"
)

// ServiceContainer holds all application services. Members for disabled
// service modes are nil.
type ServiceContainer struct {
	Dispatcher    *service.DispatcherService
	Resolver      *service.ResultResolverService
	Extractor     *inbound.Extractor
	Verifier      *oidc.Verifier
	Monitor       *monitor.Runner
	Observability ObservabilityContainer
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config        *config.AppConfig
	Backends      *Backends
	Conns         *Connections
	Observability ObservabilityContainer
	Logger        *slog.Logger
}

// NewServices wires the services for every enabled mode.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.Backends == nil {
		return ServiceContainer{}, errors.New("service deps require config and backends")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	out := ServiceContainer{Observability: deps.Observability}

	if cfg.IsHTTPServerEnabled() {
		if err := wireHTTPServices(ctx, deps, logger, &out); err != nil {
			return ServiceContainer{}, err
		}
	}

	if cfg.IsBacklogMonitorEnabled() {
		runner, err := NewMonitorRunner(deps, logger)
		if err != nil {
			return ServiceContainer{}, err
		}
		out.Monitor = runner
	}

	return out, nil
}

// NewMonitorRunner builds the backlog monitor over the selected backends and
// configured metric sinks. Failures are not notified when
// deps.Observability has no FailureNotifier.
func NewMonitorRunner(deps *ServiceDeps, logger *slog.Logger) (*monitor.Runner, error) {
	opts := monitor.RunnerOptions{
		Config:  deps.Config.Monitor,
		Queue:   deps.Backends.Queue,
		Fleet:   deps.Backends.Fleet,
		Sinks:   buildMetricSinks(deps.Config.Monitor, deps, logger),
		Logger:  logger,
		Metrics: deps.Observability.Recorder,
	}
	if deps.Observability.FailureNotifier != nil {
		opts.Notifier = deps.Observability.FailureNotifier
	}
	runner, err := monitor.NewRunner(opts)
	if err != nil {
		return nil, fmt.Errorf("create backlog monitor: %w", err)
	}
	return runner, nil
}

func wireHTTPServices(ctx context.Context, deps *ServiceDeps, logger *slog.Logger, out *ServiceContainer) error {
	cfg := deps.Config
	dispatcher, err := NewDispatcher(deps.Backends, cfg.Storage, deps.Observability, logger)
	if err != nil {
		return err
	}
	out.Dispatcher = dispatcher

	out.Resolver, err = NewResolver(deps.Backends, deps.Observability, logger)
	if err != nil {
		return err
	}

	if cfg.HTTP.WebhookToken != "" {
		out.Extractor, err = inbound.NewExtractor(inbound.Config{
			CallerExpr:      cfg.Inbound.CallerExpr,
			PayloadExpr:     cfg.Inbound.PayloadExpr,
			ContentTypeExpr: cfg.Inbound.ContentTypeExpr,
			MetadataExpr:    cfg.Inbound.MetadataExpr,
		})
		if err != nil {
			return fmt.Errorf("create webhook extractor: %w", err)
		}
	}

	if cfg.Auth.Enabled() {
		out.Verifier, err = oidc.NewVerifier(ctx, oidc.VerifierConfig{
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		})
		if err != nil {
			return fmt.Errorf("create bearer verifier: %w", err)
		}
		logger.InfoContext(ctx, "bearer verification enabled", "issuer", out.Verifier.Issuer())
	}
	return nil
}

// NewDispatcher builds the dispatcher over the selected backends.
func NewDispatcher(
	b *Backends,
	storage config.StorageConfig,
	obs ObservabilityContainer,
	logger *slog.Logger,
) (*service.DispatcherService, error) {
	if b.Objects == nil {
		return nil, errors.New("dispatcher requires an object store (set STORAGE_BUCKET)")
	}
	svc, err := service.NewDispatcherService(service.DispatcherServiceOptions{
		Store:      b.Objects,
		Queue:      b.Queue,
		Acceptance: b.Acceptance,
		Config: service.DispatcherConfig{
			KeyPrefix:       storage.KeyPrefix,
			MaxPayloadBytes: storage.MaxPayloadBytes,
		},
		Logger:  logger,
		Metrics: obs.Recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	return svc, nil
}

// NewResolver builds the result resolver over the selected backends.
func NewResolver(b *Backends, obs ObservabilityContainer, logger *slog.Logger) (*service.ResultResolverService, error) {
	svc, err := service.NewResultResolverService(service.ResultResolverServiceOptions{
		Results:    b.Results,
		Acceptance: b.Acceptance,
		Logger:     logger,
		Metrics:    obs.Recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("create result resolver: %w", err)
	}
	return svc, nil
}

// buildMetricSinks returns the configured destinations for the backlog metric.
// A sink that cannot be built is logged and skipped; the runner rejects an empty list.
func buildMetricSinks(cfg config.MonitorConfig, deps *ServiceDeps, logger *slog.Logger) []metricsink.Named {
	sinks := make([]metricsink.Named, 0, len(cfg.MetricSinks))
	for _, kind := range cfg.MetricSinks {
		switch kind {
		case config.MetricSinkCloudWatch:
			if deps.Conns == nil {
				logger.Warn("cloudwatch sink skipped: no aws clients")
				continue
			}
			sink, err := awsx.NewCloudWatchSink(deps.Conns.AWS.CloudWatch, cfg.MetricNamespace)
			if err != nil {
				logger.Error("failed to initialise cloudwatch sink", "error", err)
				continue
			}
			sinks = append(sinks, metricsink.Named{Name: string(kind), Sink: sink})
		case config.MetricSinkStatsd:
			if deps.Observability.Statsd == nil {
				logger.Warn("statsd sink skipped: OBSERVABILITY_METRICS_ENABLED is off")
				continue
			}
			sink, err := metricsink.NewStatsdSink(deps.Observability.Statsd)
			if err != nil {
				logger.Error("failed to initialise statsd sink", "error", err)
				continue
			}
			sinks = append(sinks, metricsink.Named{Name: string(kind), Sink: sink})
		case config.MetricSinkPrometheus:
			if deps.Observability.Registry == nil {
				logger.Warn("prometheus sink skipped: OBSERVABILITY_PROMETHEUS_ENABLED is off")
				continue
			}
			sink, err := metricsink.NewPrometheusSink(deps.Observability.Registry)
			if err != nil {
				logger.Error("failed to initialise prometheus sink", "error", err)
				continue
			}
			sinks = append(sinks, metricsink.Named{Name: string(kind), Sink: sink})
		}
	}
	return sinks
}

// ServiceOrchestrationConfig groups what RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] || descriptor.start == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			reportServiceError(ctx, deps, descriptor.name, err)
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func reportServiceError(ctx context.Context, deps *serviceStartupDeps, name string, err error) {
	errMsg := fmt.Errorf("%s failed: %w", name, err)
	select {
	case deps.errCh <- errMsg:
	case <-ctx.Done():
	default:
		deps.logger.WarnContext(ctx, "dropping background service error", "service", name, "error", errMsg)
	}
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{mode: svc.mode, name: svc.name, done: done})
	}
	return handles
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	runner := deps.cfg.Services.Monitor
	if runner == nil {
		return nil
	}
	return []backgroundService{{
		mode:  config.ServiceModeBacklogMonitor,
		name:  "backlog monitor",
		start: runner.Run,
	}}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		OnError: func(err error) {
			reportServiceError(deps.ctx, deps, "http server", err)
		},
	})
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}

	server, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return err
	}
	backgrounds := startBackgroundServices(deps, buildBackgroundServices(deps))

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		logger:      logger,
		backgrounds: backgrounds,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	signals     <-chan os.Signal // optional; defaults to SIGINT/SIGTERM
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := cfg.signals
	if quit == nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		quit = sigCh
	}

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server, then waits for background services
// to finish their current tick.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		// cfg.ctx is already cancelled here; the deadline must not inherit that.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(shutdownCtx, cfg.httpServer, cfg.logger); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
