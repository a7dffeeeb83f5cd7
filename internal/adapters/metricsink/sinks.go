// Package metricsink provides core.MetricsSink implementations beyond
// CloudWatch: StatsD, Prometheus gauges, and a fan-out that publishes to
// several sinks at once.
package metricsink

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	"github.com/target/detectq/internal/observability/statsd"
)

// StatsdSink publishes points as StatsD gauges named "<namespace>.<name>"
// with dimensions as tags.
type StatsdSink struct {
	sink statsd.Sink
}

// NewStatsdSink wraps a StatsD sink.
func NewStatsdSink(sink statsd.Sink) (*StatsdSink, error) {
	if sink == nil {
		return nil, errors.New("statsd sink is required")
	}
	return &StatsdSink{sink: sink}, nil
}

// Publish emits one gauge. StatsD is fire-and-forget so this never fails.
func (s *StatsdSink) Publish(_ context.Context, p model.MetricPoint) error {
	name := p.Name
	if p.Namespace != "" {
		name = p.Namespace + "." + p.Name
	}
	s.sink.Gauge(name, p.Value, maps.Clone(p.Dimensions))
	return nil
}

// PrometheusSink exposes the latest value of each published point as a gauge
// labelled by metric name and flattened dimensions.
type PrometheusSink struct {
	gauge *prometheus.GaugeVec
}

// NewPrometheusSink registers its gauge with reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		return nil, errors.New("prometheus registerer is required")
	}
	gauge := promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "detectq",
		Name:      "published_metric",
		Help:      "Last value handed to the metrics sinks, by metric name and dimensions.",
	}, []string{"metric", "dimensions"})
	return &PrometheusSink{gauge: gauge}, nil
}

// Publish sets the gauge for the point.
func (s *PrometheusSink) Publish(_ context.Context, p model.MetricPoint) error {
	s.gauge.WithLabelValues(p.Name, FlattenDimensions(p.Dimensions)).Set(p.Value)
	return nil
}

// FlattenDimensions renders dimensions as "k=v,k2=v2" sorted by key.
func FlattenDimensions(dims map[string]string) string {
	parts := make([]string, 0, len(dims))
	for _, k := range slices.Sorted(maps.Keys(dims)) {
		parts = append(parts, k+"="+dims[k])
	}
	return strings.Join(parts, ",")
}

// Named attaches a name to a sink for error attribution.
type Named struct {
	Name string
	Sink core.MetricsSink
}

// Fanout publishes each point to every sink concurrently. All sinks are
// attempted; failures are joined and prefixed with the sink name.
type Fanout struct {
	sinks []Named
}

// NewFanout drops nil sinks and errors when none remain.
func NewFanout(sinks ...Named) (*Fanout, error) {
	var kept []Named
	for _, s := range sinks {
		if s.Sink != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("at least one metrics sink is required")
	}
	return &Fanout{sinks: kept}, nil
}

// Names lists the configured sinks in order.
func (f *Fanout) Names() []string {
	out := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		out[i] = s.Name
	}
	return out
}

// Publish implements core.MetricsSink.
func (f *Fanout) Publish(ctx context.Context, p model.MetricPoint) error {
	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	for i, s := range f.sinks {
		g.Go(func() error {
			if err := s.Sink.Publish(ctx, p); err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

var (
	_ core.MetricsSink = (*StatsdSink)(nil)
	_ core.MetricsSink = (*PrometheusSink)(nil)
	_ core.MetricsSink = (*Fanout)(nil)
)
