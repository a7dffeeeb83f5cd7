package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/target/detectq/config"
	"github.com/target/detectq/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	bootstrap.InitLogger("info")
	if err := run(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	// Replaces the bootstrap logger as the default once the level is known.
	logger := bootstrap.InitLogger(cfg.LogLevel)
	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	conns, err := bootstrap.OpenConnections(ctx, cfgPtr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close connections failed", "error", cerr)
		}
	}()

	if err = migrateIfEnabled(ctx, cfgPtr, conns, logger); err != nil {
		return err
	}

	obs := bootstrap.BuildObservability(logger, cfg.Observability)
	defer func() {
		if cerr := obs.Close(); cerr != nil {
			logger.WarnContext(ctx, "close observability failed", "error", cerr)
		}
	}()

	backends, err := bootstrap.BuildBackends(ctx, bootstrap.BackendDeps{
		Config: cfgPtr,
		Conns:  conns,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("build backends: %w", err)
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:        cfgPtr,
		Backends:      backends,
		Conns:         conns,
		Observability: obs,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})
}

func migrateIfEnabled(ctx context.Context, cfg *config.AppConfig, conns *bootstrap.Connections, logger *slog.Logger) error {
	if conns.DB == nil {
		return nil
	}
	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		return nil
	}
	return bootstrap.RunMigrations(ctx, conns.DB, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting detectq service",
		"enabled_services", bootstrap.GetEnabledServices(cfg),
		"queue_backend", cfg.Queue.Backend,
		"results_backend", cfg.Results.Backend,
		"storage_bucket", cfg.Storage.Bucket)
}
