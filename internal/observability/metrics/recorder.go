// Package metrics records detectq service metrics to StatsD and Prometheus.
package metrics

import (
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/target/detectq/internal/domain/model"
	obserrors "github.com/target/detectq/internal/observability/errors"
	"github.com/target/detectq/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Recorder fans service metrics out to an optional StatsD sink and optional
// Prometheus collectors. A nil *Recorder drops everything.
type Recorder struct {
	sink statsd.Sink

	submissions    *prometheus.CounterVec
	submitDuration prometheus.Histogram
	markerFailures prometheus.Counter
	resolutions    *prometheus.CounterVec
	ticks          *prometheus.CounterVec
	tickDuration   prometheus.Histogram
	queueDepth     *prometheus.GaugeVec
	fleetSize      *prometheus.GaugeVec
	backlog        *prometheus.GaugeVec
}

// RecorderOptions configures NewRecorder. Both fields are optional.
type RecorderOptions struct {
	Sink       statsd.Sink
	Registerer prometheus.Registerer
}

// NewRecorder builds a Recorder and registers its collectors with opts.Registerer.
func NewRecorder(opts RecorderOptions) *Recorder {
	r := &Recorder{sink: opts.Sink}
	if opts.Registerer == nil {
		return r
	}

	f := promauto.With(opts.Registerer)
	r.submissions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "detectq", Subsystem: "dispatch", Name: "submissions_total",
		Help: "Submissions handled by the dispatcher, by result and error class.",
	}, []string{"result", "error_class"})
	r.submitDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: "detectq", Subsystem: "dispatch", Name: "submit_duration_seconds",
		Help:    "Time spent uploading and enqueueing a submission.",
		Buckets: prometheus.DefBuckets,
	})
	r.markerFailures = f.NewCounter(prometheus.CounterOpts{
		Namespace: "detectq", Subsystem: "dispatch", Name: "acceptance_marker_failures_total",
		Help: "Acceptance markers that could not be written after enqueue.",
	})
	r.resolutions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "detectq", Subsystem: "results", Name: "resolutions_total",
		Help: "Result lookups by outcome.",
	}, []string{"status"})
	r.ticks = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "detectq", Subsystem: "monitor", Name: "ticks_total",
		Help: "Backlog monitor ticks by result and error class.",
	}, []string{"result", "error_class"})
	r.tickDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: "detectq", Subsystem: "monitor", Name: "tick_duration_seconds",
		Help:    "Duration of a sample and publish cycle.",
		Buckets: prometheus.DefBuckets,
	})
	r.queueDepth = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "detectq", Subsystem: "monitor", Name: "queue_depth",
		Help: "Last observed approximate queue depth.",
	}, []string{"fleet"})
	r.fleetSize = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "detectq", Subsystem: "monitor", Name: "fleet_desired_size",
		Help: "Last observed desired fleet size.",
	}, []string{"fleet"})
	r.backlog = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "detectq", Subsystem: "monitor", Name: "backlog_per_instance",
		Help: "Last computed backlog per instance.",
	}, []string{"fleet"})
	return r
}

// Outcome describes one measured operation.
type Outcome struct {
	Result   string
	Duration time.Duration
	Err      error
}

func (o Outcome) tags() map[string]string {
	tags := map[string]string{"result": o.Result}
	if o.Err != nil {
		if class := obserrors.Classify(o.Err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}

// Submission records a dispatcher submit call.
func (r *Recorder) Submission(o Outcome) {
	if r == nil {
		return
	}
	tags := o.tags()
	if r.sink != nil {
		r.sink.Count("dispatch.submit", 1, tags)
		if o.Duration > 0 {
			r.sink.Timing("dispatch.submit.duration", o.Duration, CloneTags(tags))
		}
	}
	if r.submissions != nil {
		r.submissions.WithLabelValues(tags["result"], tags["error_class"]).Inc()
		if o.Duration > 0 {
			r.submitDuration.Observe(o.Duration.Seconds())
		}
	}
}

// AcceptanceMarkerFailed records a failed marker write; the submission is rejected.
func (r *Recorder) AcceptanceMarkerFailed(err error) {
	if r == nil {
		return
	}
	if r.sink != nil {
		r.sink.Count("dispatch.acceptance_marker", 1, map[string]string{
			"result":      ResultError,
			"error_class": obserrors.Classify(err),
		})
	}
	if r.markerFailures != nil {
		r.markerFailures.Inc()
	}
}

// Resolution records a resolver lookup outcome. status is a ResolutionStatus
// or "error".
func (r *Recorder) Resolution(status string) {
	if r == nil {
		return
	}
	if r.sink != nil {
		r.sink.Count("results.resolve", 1, map[string]string{"status": status})
	}
	if r.resolutions != nil {
		r.resolutions.WithLabelValues(status).Inc()
	}
}

// MonitorTick records the outcome of one backlog monitor tick.
func (r *Recorder) MonitorTick(o Outcome) {
	if r == nil {
		return
	}
	tags := o.tags()
	if r.sink != nil {
		r.sink.Count("monitor.tick", 1, tags)
		if o.Duration > 0 {
			r.sink.Timing("monitor.tick.duration", o.Duration, CloneTags(tags))
		}
	}
	if r.ticks != nil {
		r.ticks.WithLabelValues(tags["result"], tags["error_class"]).Inc()
		if o.Duration > 0 {
			r.tickDuration.Observe(o.Duration.Seconds())
		}
	}
}

// BacklogSampled records the raw inputs and derived value of a sample.
func (r *Recorder) BacklogSampled(s model.BacklogSample) {
	if r == nil {
		return
	}
	if r.sink != nil {
		tags := map[string]string{"fleet": s.Fleet}
		r.sink.Gauge("monitor.queue_depth", float64(s.QueueDepth), tags)
		r.sink.Gauge("monitor.fleet_desired_size", float64(s.FleetDesiredSize), CloneTags(tags))
	}
	if r.queueDepth != nil {
		r.queueDepth.WithLabelValues(s.Fleet).Set(float64(s.QueueDepth))
		r.fleetSize.WithLabelValues(s.Fleet).Set(float64(s.FleetDesiredSize))
		r.backlog.WithLabelValues(s.Fleet).Set(s.BacklogPerInstance)
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
