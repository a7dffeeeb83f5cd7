// Package monitor provides adapters for running the backlog monitor.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/detectq/config"
	"github.com/target/detectq/internal/adapters/metricsink"
	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/observability/metrics"
	"github.com/target/detectq/internal/service"
)

// Runner wires the backlog monitor service from its collaborators and runs it.
type Runner struct {
	monitor *service.BacklogMonitorService
	sinks   []string
	logger  *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Config config.MonitorConfig
	Queue  core.JobQueue
	Fleet  core.FleetSizeSource
	Sinks  []metricsink.Named
	Logger *slog.Logger

	// Optional
	Metrics  *metrics.Recorder
	Notifier service.FailureNotifier
}

// NewRunner creates a new backlog monitor runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	fanout, err := metricsink.NewFanout(opts.Sinks...)
	if err != nil {
		return nil, fmt.Errorf("build metric sinks: %w", err)
	}

	monitor, err := wireMonitorService(opts, fanout)
	if err != nil {
		return nil, fmt.Errorf("wire backlog monitor service: %w", err)
	}

	return &Runner{
		monitor: monitor,
		sinks:   fanout.Names(),
		logger:  opts.Logger.With("component", "backlog_monitor_runner"),
	}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Queue == nil {
		return errors.New("job queue is required")
	}
	if opts.Fleet == nil {
		return errors.New("fleet size source is required")
	}
	if opts.Config.FleetName == "" {
		return errors.New("MONITOR_FLEET_NAME (or AGN) is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

func wireMonitorService(opts RunnerOptions, sink core.MetricsSink) (*service.BacklogMonitorService, error) {
	return service.NewBacklogMonitorService(service.BacklogMonitorServiceOptions{
		Queue: opts.Queue,
		Fleet: opts.Fleet,
		Sinks: []core.MetricsSink{sink},
		Config: service.BacklogMonitorConfig{
			Fleet:              opts.Config.FleetName,
			Interval:           opts.Config.Interval,
			TickTimeout:        opts.Config.TickTimeout,
			FleetNotFoundLimit: opts.Config.FleetNotFoundLimit,
			MetricNamespace:    opts.Config.MetricNamespace,
			MetricName:         opts.Config.MetricName,
			MetricDimension:    opts.Config.MetricDimension,
		},
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
		Notifier: opts.Notifier,
	})
}

// Service exposes the wired monitor for health reporting.
func (r *Runner) Service() *service.BacklogMonitorService { return r.monitor }

// Run starts the monitor loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting backlog monitor runner", "sinks", r.sinks)
	return r.monitor.Run(ctx)
}
