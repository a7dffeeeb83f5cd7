package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
	"github.com/target/detectq/internal/mocks"
	"github.com/target/detectq/internal/observability/notify"
)

type recordingSink struct {
	mu     sync.Mutex
	points []model.MetricPoint
	fail   func(call int) error
	calls  int
}

func (s *recordingSink) Publish(_ context.Context, p model.MetricPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		if err := s.fail(s.calls); err != nil {
			return err
		}
	}
	s.points = append(s.points, p)
	return nil
}

func (s *recordingSink) published() []model.MetricPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MetricPoint(nil), s.points...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []notify.FailurePayload
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, p notify.FailurePayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p)
}

func (n *recordingNotifier) all() []notify.FailurePayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.FailurePayload(nil), n.payloads...)
}

type monitorFixture struct {
	queue    *mocks.MockJobQueue
	fleet    *mocks.MockFleetSizeSource
	sink     *recordingSink
	notifier *recordingNotifier
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	return &monitorFixture{
		queue:    mocks.NewMockJobQueue(ctrl),
		fleet:    mocks.NewMockFleetSizeSource(ctrl),
		sink:     &recordingSink{},
		notifier: &recordingNotifier{},
	}
}

func (f *monitorFixture) service(t *testing.T, cfg BacklogMonitorConfig) *BacklogMonitorService {
	t.Helper()
	if cfg.Fleet == "" {
		cfg.Fleet = "workers"
	}
	if cfg.MetricNamespace == "" {
		cfg.MetricNamespace = "detectq"
	}
	svc, err := NewBacklogMonitorService(BacklogMonitorServiceOptions{
		Queue:    f.queue,
		Fleet:    f.fleet,
		Sinks:    []core.MetricsSink{f.sink},
		Config:   cfg,
		Notifier: f.notifier,
	})
	require.NoError(t, err)
	return svc
}

func TestNewBacklogMonitorService_Validation(t *testing.T) {
	f := newMonitorFixture(t)
	_, err := NewBacklogMonitorService(BacklogMonitorServiceOptions{Queue: f.queue, Fleet: f.fleet, Config: BacklogMonitorConfig{Fleet: "w"}})
	require.Error(t, err, "sinks are required")

	_, err = NewBacklogMonitorService(BacklogMonitorServiceOptions{
		Queue: f.queue, Fleet: f.fleet, Sinks: []core.MetricsSink{f.sink},
	})
	require.Error(t, err, "fleet name is required")
}

func TestBacklogMonitorService_Tick_ComputesBacklog(t *testing.T) {
	tests := []struct {
		depth, size int64
		want        float64
	}{
		{depth: 0, size: 0, want: 0},
		{depth: 10, size: 0, want: 10},
		{depth: 9, size: 3, want: 3},
		{depth: 10, size: 3, want: 10.0 / 3.0},
	}

	for _, tt := range tests {
		f := newMonitorFixture(t)
		f.queue.EXPECT().ApproximateDepth(gomock.Any()).Return(tt.depth, nil)
		f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(tt.size, nil)
		svc := f.service(t, BacklogMonitorConfig{})

		sample, err := svc.Tick(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, tt.want, sample.BacklogPerInstance, 1e-9)

		points := f.sink.published()
		require.Len(t, points, 1)
		assert.Equal(t, "detectq", points[0].Namespace)
		assert.Equal(t, "BacklogPerInstance", points[0].Name)
		assert.Equal(t, map[string]string{"AutoScalingGroupName": "workers"}, points[0].Dimensions)
		assert.Equal(t, model.MetricUnitCount, points[0].Unit)
		assert.InDelta(t, tt.want, points[0].Value, 1e-9)
		assert.Equal(t, model.MonitorIdle, svc.Status().State)
	}
}

func TestBacklogMonitorService_Tick_PublishFailureIsTransient(t *testing.T) {
	f := newMonitorFixture(t)
	f.queue.EXPECT().ApproximateDepth(gomock.Any()).Return(int64(4), nil).Times(2)
	f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(int64(2), nil).Times(2)
	f.sink.fail = func(call int) error {
		if call == 1 {
			return errors.New("cloudwatch throttled")
		}
		return nil
	}
	svc := f.service(t, BacklogMonitorConfig{})

	_, err := svc.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsPublish(err))
	assert.True(t, apperrors.IsTransient(err))
	require.NoError(t, svc.runTick(context.Background()))

	st := svc.Status()
	assert.Equal(t, 0, st.ConsecutiveFailures)
	require.NotNil(t, st.LastSample)
	assert.InDelta(t, 2.0, st.LastSample.BacklogPerInstance, 1e-9)
	assert.Len(t, f.sink.published(), 1)
}

func TestBacklogMonitorService_Tick_Timeout(t *testing.T) {
	f := newMonitorFixture(t)
	f.queue.EXPECT().ApproximateDepth(gomock.Any()).DoAndReturn(func(ctx context.Context) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	f.fleet.EXPECT().DesiredSize(gomock.Any(), gomock.Any()).Return(int64(1), nil).AnyTimes()
	svc := f.service(t, BacklogMonitorConfig{TickTimeout: 20 * time.Millisecond})

	_, err := svc.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.Equal(t, model.MonitorIdle, svc.Status().State)
	assert.Empty(t, f.sink.published())
}

func TestBacklogMonitorService_Tick_SourceIgnoringContextDoesNotStall(t *testing.T) {
	f := newMonitorFixture(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.queue.EXPECT().ApproximateDepth(gomock.Any()).DoAndReturn(func(context.Context) (int64, error) {
		<-release
		return 0, nil
	})
	f.fleet.EXPECT().DesiredSize(gomock.Any(), gomock.Any()).Return(int64(1), nil).AnyTimes()
	svc := f.service(t, BacklogMonitorConfig{TickTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := svc.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, f.sink.published())
}

func TestBacklogMonitorService_Run_FleetMissingAtStartupIsFatal(t *testing.T) {
	f := newMonitorFixture(t)
	f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(int64(0), apperrors.FleetNotFound("workers"))
	f.queue.EXPECT().ApproximateDepth(gomock.Any()).Times(0)
	svc := f.service(t, BacklogMonitorConfig{Interval: 10 * time.Millisecond})

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsFleetNotFound(err))

	st, healthy := svc.Healthy()
	assert.False(t, healthy)
	assert.True(t, st.Fatal)
	assert.Equal(t, model.MonitorStopped, st.State)

	notes := f.notifier.all()
	require.NotEmpty(t, notes)
	assert.Equal(t, "backlog_monitor", notes[0].Component)
	assert.Equal(t, notify.SeverityCritical, notes[0].Severity)
	assert.Equal(t, "fleet_not_found", notes[0].ErrorClass)
}

func TestBacklogMonitorService_FleetMissingMidRun(t *testing.T) {
	t.Run("below limit keeps running", func(t *testing.T) {
		f := newMonitorFixture(t)
		f.queue.EXPECT().ApproximateDepth(gomock.Any()).Return(int64(1), nil).AnyTimes()
		gomock.InOrder(
			f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(int64(0), apperrors.FleetNotFound("workers")),
			f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(int64(2), nil),
		)
		svc := f.service(t, BacklogMonitorConfig{FleetNotFoundLimit: 2})

		require.NoError(t, svc.runTick(context.Background()))
		require.NoError(t, svc.runTick(context.Background()))
		assert.Equal(t, 0, svc.Status().ConsecutiveFailures)
		require.Len(t, f.notifier.all(), 1)
		assert.Equal(t, notify.SeverityError, f.notifier.all()[0].Severity)
	})

	t.Run("limit reached stops loop", func(t *testing.T) {
		f := newMonitorFixture(t)
		f.queue.EXPECT().ApproximateDepth(gomock.Any()).Return(int64(1), nil).AnyTimes()
		f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(int64(0), apperrors.FleetNotFound("workers")).Times(2)
		svc := f.service(t, BacklogMonitorConfig{FleetNotFoundLimit: 2})

		require.NoError(t, svc.runTick(context.Background()))
		err := svc.runTick(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsFleetNotFound(err))
	})

	t.Run("zero limit never stops", func(t *testing.T) {
		f := newMonitorFixture(t)
		f.queue.EXPECT().ApproximateDepth(gomock.Any()).Return(int64(1), nil).AnyTimes()
		f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(int64(0), apperrors.FleetNotFound("workers")).Times(5)
		svc := f.service(t, BacklogMonitorConfig{})

		for range 5 {
			require.NoError(t, svc.runTick(context.Background()))
		}
		assert.Equal(t, 5, svc.Status().ConsecutiveFailures)
	})
}

func TestBacklogMonitorService_Run_ContinuesAfterTransientErrors(t *testing.T) {
	f := newMonitorFixture(t)
	var depthCalls atomic.Int32
	f.queue.EXPECT().ApproximateDepth(gomock.Any()).DoAndReturn(func(context.Context) (int64, error) {
		if depthCalls.Add(1) == 1 {
			return 0, errors.New("sqs unavailable")
		}
		return 6, nil
	}).AnyTimes()
	f.fleet.EXPECT().DesiredSize(gomock.Any(), "workers").Return(int64(3), nil).AnyTimes()
	svc := f.service(t, BacklogMonitorConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.sink.published()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancel")
	}

	st, healthy := svc.Healthy()
	assert.True(t, healthy)
	assert.Equal(t, model.MonitorStopped, st.State)
	assert.InDelta(t, 2.0, f.sink.published()[0].Value, 1e-9)
	assert.Empty(t, f.notifier.all())
}

func TestBacklogMonitorService_Healthy_Stale(t *testing.T) {
	f := newMonitorFixture(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, err := NewBacklogMonitorService(BacklogMonitorServiceOptions{
		Queue:  f.queue,
		Fleet:  f.fleet,
		Sinks:  []core.MetricsSink{f.sink},
		Config: BacklogMonitorConfig{Fleet: "workers", Interval: time.Second},
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)

	_, healthy := svc.Healthy()
	assert.True(t, healthy, "not started yet")

	svc.startedAt = now
	now = now.Add(4 * time.Second)
	_, healthy = svc.Healthy()
	assert.True(t, healthy)

	now = now.Add(2 * time.Second)
	_, healthy = svc.Healthy()
	assert.False(t, healthy)
}
