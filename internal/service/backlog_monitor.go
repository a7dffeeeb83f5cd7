package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
	obserrors "github.com/target/detectq/internal/observability/errors"
	"github.com/target/detectq/internal/observability/metrics"
	"github.com/target/detectq/internal/observability/notify"
)

const (
	defaultMonitorInterval    = 2 * time.Second
	defaultMonitorTickTimeout = 10 * time.Second
	// staleAfterIntervals is how many intervals may pass without a successful
	// tick before the monitor reports itself unhealthy.
	staleAfterIntervals = 5
)

// FailureNotifier delivers failure notifications to operators.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, payload notify.FailurePayload)
}

// BacklogMonitorConfig holds the monitor's tunables.
type BacklogMonitorConfig struct {
	Fleet              string
	Interval           time.Duration
	TickTimeout        time.Duration
	FleetNotFoundLimit int
	MetricNamespace    string
	MetricName         string
	MetricDimension    string
}

// BacklogMonitorServiceOptions groups dependencies for BacklogMonitorService.
type BacklogMonitorServiceOptions struct {
	Queue    core.JobQueue        // Required: depth source
	Fleet    core.FleetSizeSource // Required: fleet size source
	Sinks    []core.MetricsSink   // Required: at least one destination
	Config   BacklogMonitorConfig
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Notifier FailureNotifier // Optional: operator notifications
	Now      func() time.Time
}

// BacklogMonitorService periodically samples queue depth and fleet size and
// publishes the backlog-per-instance metric an autoscaler tracks.
type BacklogMonitorService struct {
	queue    core.JobQueue
	fleet    core.FleetSizeSource
	sinks    []core.MetricsSink
	cfg      BacklogMonitorConfig
	logger   *slog.Logger
	metrics  *metrics.Recorder
	notifier FailureNotifier
	now      func() time.Time

	mu            sync.RWMutex
	state         model.MonitorState
	startedAt     time.Time
	lastSample    *model.BacklogSample
	lastSuccessAt *time.Time
	lastError     string
	failures      int
	fleetMisses   int
	fatal         bool
}

// NewBacklogMonitorService constructs a new BacklogMonitorService.
func NewBacklogMonitorService(opts BacklogMonitorServiceOptions) (*BacklogMonitorService, error) {
	if opts.Queue == nil {
		return nil, errors.New("JobQueue is required")
	}
	if opts.Fleet == nil {
		return nil, errors.New("FleetSizeSource is required")
	}
	sinks := make([]core.MetricsSink, 0, len(opts.Sinks))
	for _, s := range opts.Sinks {
		if s != nil {
			sinks = append(sinks, s)
		}
	}
	if len(sinks) == 0 {
		return nil, errors.New("at least one MetricsSink is required")
	}
	if opts.Config.Fleet == "" {
		return nil, errors.New("fleet name is required")
	}

	cfg := opts.Config
	if cfg.Interval <= 0 {
		cfg.Interval = defaultMonitorInterval
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = defaultMonitorTickTimeout
	}
	if cfg.MetricName == "" {
		cfg.MetricName = "BacklogPerInstance"
	}
	if cfg.MetricDimension == "" {
		cfg.MetricDimension = "AutoScalingGroupName"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &BacklogMonitorService{
		queue:    opts.Queue,
		fleet:    opts.Fleet,
		sinks:    sinks,
		cfg:      cfg,
		logger:   logger.With("component", "backlog_monitor", "fleet", cfg.Fleet),
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		now:      now,
		state:    model.MonitorIdle,
	}, nil
}

// MustNewBacklogMonitorService constructs a new BacklogMonitorService and panics on error.
func MustNewBacklogMonitorService(opts BacklogMonitorServiceOptions) *BacklogMonitorService {
	svc, err := NewBacklogMonitorService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create BacklogMonitorService: %v", err))
	}
	return svc
}

// Run checks the fleet exists, then ticks at the configured interval until
// ctx is cancelled. A missing fleet at startup is returned as a fatal error;
// so is a fleet that stays missing for FleetNotFoundLimit consecutive ticks.
// Returns nil on graceful shutdown.
func (s *BacklogMonitorService) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "starting backlog monitor",
		"interval", s.cfg.Interval,
		"tick_timeout", s.cfg.TickTimeout,
		"sinks", len(s.sinks),
	)

	if err := s.CheckFleet(ctx); err != nil {
		if apperrors.IsFleetNotFound(err) {
			s.stop(ctx, err)
			return err
		}
		if isContextCancellation(err) && ctx.Err() != nil {
			s.stop(ctx, nil)
			return nil
		}
		s.logger.WarnContext(ctx, "fleet check failed, continuing", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if err := s.runTick(ctx); err != nil {
		s.stop(ctx, err)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.stop(ctx, nil)
			s.logger.InfoContext(ctx, "backlog monitor stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.runTick(ctx); err != nil {
				s.stop(ctx, err)
				return err
			}
		}
	}
}

// CheckFleet verifies the configured fleet exists. FleetNotFound is notified
// and returned unchanged.
func (s *BacklogMonitorService) CheckFleet(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	size, err := s.fleet.DesiredSize(checkCtx, s.cfg.Fleet)
	if err != nil {
		if apperrors.IsFleetNotFound(err) {
			s.logger.ErrorContext(ctx, "fleet not found at startup", "error", err)
			s.notify(ctx, "startup fleet check", err, notify.SeverityCritical)
		}
		return err
	}
	s.logger.InfoContext(ctx, "fleet found", "fleet_desired_size", size)
	return nil
}

// Sample reads queue depth and fleet size concurrently. It returns when ctx
// is done even if a source is still blocked.
func (s *BacklogMonitorService) Sample(ctx context.Context) (model.BacklogSample, error) {
	var depth, size int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.queue.ApproximateDepth(gctx)
		if err != nil {
			return fmt.Errorf("read queue depth: %w", err)
		}
		depth = d
		return nil
	})
	g.Go(func() error {
		n, err := s.fleet.DesiredSize(gctx, s.cfg.Fleet)
		if err != nil {
			return fmt.Errorf("read fleet size: %w", err)
		}
		size = n
		return nil
	})
	// A source that ignores ctx must not hold the tick past its deadline.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return model.BacklogSample{}, err
		}
	case <-ctx.Done():
		return model.BacklogSample{}, fmt.Errorf("sample backlog: %w", ctx.Err())
	}
	return model.NewBacklogSample(s.cfg.Fleet, depth, size, s.now().UTC()), nil
}

// Publish writes sample to every sink. Every sink is attempted; failures are
// joined into a single publish error.
func (s *BacklogMonitorService) Publish(ctx context.Context, sample model.BacklogSample) error {
	point := model.MetricPoint{
		Namespace:  s.cfg.MetricNamespace,
		Name:       s.cfg.MetricName,
		Dimensions: map[string]string{s.cfg.MetricDimension: sample.Fleet},
		Value:      sample.BacklogPerInstance,
		Unit:       model.MetricUnitCount,
		Timestamp:  sample.SampledAt,
	}

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, point); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperrors.Publish(errors.Join(errs...), "failed to publish backlog metric")
	}
	return nil
}

// Tick runs one sample and publish cycle bounded by the tick timeout. Errors
// are returned to the caller; Tick itself never decides whether they are fatal.
func (s *BacklogMonitorService) Tick(ctx context.Context) (model.BacklogSample, error) {
	s.setState(model.MonitorSampling)
	defer s.setState(model.MonitorIdle)

	start := s.now()
	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	sample, err := s.Sample(tickCtx)
	if err == nil {
		s.metrics.BacklogSampled(sample)
		err = s.Publish(tickCtx, sample)
	}
	if err != nil && ctx.Err() == nil && errors.Is(tickCtx.Err(), context.DeadlineExceeded) {
		err = apperrors.Wrap(err, apperrors.ErrCodeTimeout, "backlog monitor tick timed out")
	}

	outcome := metrics.Outcome{Result: metrics.ResultSuccess, Duration: s.now().Sub(start), Err: err}
	if err != nil {
		outcome.Result = metrics.ResultSkipped
	}
	s.metrics.MonitorTick(outcome)

	s.record(sample, err)
	return sample, err
}

// runTick runs a tick and decides whether its error ends the loop.
func (s *BacklogMonitorService) runTick(ctx context.Context) error {
	sample, err := s.Tick(ctx)
	if err == nil {
		s.logger.DebugContext(ctx, "backlog published",
			"queue_depth", sample.QueueDepth,
			"fleet_desired_size", sample.FleetDesiredSize,
			"backlog_per_instance", sample.BacklogPerInstance,
		)
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	if apperrors.IsFleetNotFound(err) {
		misses := s.fleetMissCount()
		s.logger.ErrorContext(ctx, "fleet not found, skipping tick",
			"consecutive_misses", misses,
			"limit", s.cfg.FleetNotFoundLimit,
			"error", err,
		)
		if s.cfg.FleetNotFoundLimit > 0 && misses >= s.cfg.FleetNotFoundLimit {
			return fmt.Errorf("fleet missing for %d consecutive ticks: %w", misses, err)
		}
		s.notify(ctx, "tick", err, notify.SeverityError)
		return nil
	}

	s.logger.WarnContext(ctx, "backlog tick skipped",
		"error", err,
		"error_class", obserrors.Classify(err),
	)
	return nil
}

// Status returns a snapshot of the monitor's state.
func (s *BacklogMonitorService) Status() model.MonitorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := model.MonitorStatus{
		State:               s.state,
		Fleet:               s.cfg.Fleet,
		LastError:           s.lastError,
		ConsecutiveFailures: s.failures,
		Fatal:               s.fatal,
	}
	if s.lastSample != nil {
		sample := *s.lastSample
		st.LastSample = &sample
	}
	if s.lastSuccessAt != nil {
		at := *s.lastSuccessAt
		st.LastSuccessAt = &at
	}
	return st
}

// Healthy reports whether the monitor is running and has published recently.
// A monitor that has not been started yet is considered healthy.
func (s *BacklogMonitorService) Healthy() (model.MonitorStatus, bool) {
	st := s.Status()
	if st.Fatal {
		return st, false
	}

	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	if startedAt.IsZero() {
		return st, true
	}
	ref := startedAt
	if st.LastSuccessAt != nil {
		ref = *st.LastSuccessAt
	}
	return st, s.now().Sub(ref) <= s.cfg.Interval*staleAfterIntervals
}

func (s *BacklogMonitorService) setState(state model.MonitorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.MonitorStopped {
		return
	}
	s.state = state
}

func (s *BacklogMonitorService) record(sample model.BacklogSample, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		s.lastError = err.Error()
		if apperrors.IsFleetNotFound(err) {
			s.fleetMisses++
		} else {
			s.fleetMisses = 0
		}
		return
	}
	s.failures = 0
	s.fleetMisses = 0
	s.lastError = ""
	s.lastSample = &sample
	at := sample.SampledAt
	s.lastSuccessAt = &at
}

func (s *BacklogMonitorService) fleetMissCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fleetMisses
}

// stop marks the loop as exited. A non-nil err marks it fatal and notifies.
func (s *BacklogMonitorService) stop(ctx context.Context, err error) {
	s.mu.Lock()
	s.state = model.MonitorStopped
	if err != nil {
		s.fatal = true
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "backlog monitor stopped", "error", err)
		s.notify(ctx, "loop terminated", err, notify.SeverityCritical)
	}
}

func (s *BacklogMonitorService) notify(ctx context.Context, subject string, err error, severity string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyFailure(ctx, notify.FailurePayload{
		Component:  "backlog_monitor",
		Subject:    subject,
		Error:      err.Error(),
		ErrorClass: obserrors.Classify(err),
		Severity:   severity,
		OccurredAt: s.now().UTC(),
		Metadata:   map[string]string{"fleet": s.cfg.Fleet},
	})
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
