package model

import "time"

// BacklogSample is recomputed every monitor tick and never persisted.
type BacklogSample struct {
	Fleet              string    `json:"fleet"`
	QueueDepth         int64     `json:"queue_depth"`
	FleetDesiredSize   int64     `json:"fleet_desired_size"`
	BacklogPerInstance float64   `json:"backlog_per_instance"`
	SampledAt          time.Time `json:"sampled_at"`
}

// ComputeBacklogPerInstance divides queue depth by fleet size. A fleet of
// zero is treated as one so scaling up from zero still yields a signal.
func ComputeBacklogPerInstance(queueDepth, fleetDesiredSize int64) float64 {
	if queueDepth < 0 {
		queueDepth = 0
	}
	if fleetDesiredSize < 1 {
		fleetDesiredSize = 1
	}
	return float64(queueDepth) / float64(fleetDesiredSize)
}

// NewBacklogSample builds a sample with its derived value filled in.
func NewBacklogSample(fleet string, queueDepth, fleetDesiredSize int64, at time.Time) BacklogSample {
	return BacklogSample{
		Fleet:              fleet,
		QueueDepth:         queueDepth,
		FleetDesiredSize:   fleetDesiredSize,
		BacklogPerInstance: ComputeBacklogPerInstance(queueDepth, fleetDesiredSize),
		SampledAt:          at,
	}
}

// MetricUnitCount is the unit used for the backlog metric.
const MetricUnitCount = "Count"

// MetricPoint is a single value handed to a metrics sink.
type MetricPoint struct {
	Namespace  string
	Name       string
	Dimensions map[string]string
	Value      float64
	Unit       string
	Timestamp  time.Time
}

// MonitorState is the backlog monitor's tick state.
type MonitorState string

const (
	// MonitorIdle means the monitor is waiting for the next tick.
	MonitorIdle MonitorState = "idle"
	// MonitorSampling means a tick is in flight.
	MonitorSampling MonitorState = "sampling"
	// MonitorStopped means the loop has exited.
	MonitorStopped MonitorState = "stopped"
)

// MonitorStatus is a point-in-time view of the backlog monitor for health checks.
type MonitorStatus struct {
	State               MonitorState   `json:"state"`
	Fleet               string         `json:"fleet"`
	LastSample          *BacklogSample `json:"last_sample,omitempty"`
	LastSuccessAt       *time.Time     `json:"last_success_at,omitempty"`
	LastError           string         `json:"last_error,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	Fatal               bool           `json:"fatal"`
}
