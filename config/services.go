package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server (submissions, webhook, results, health).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeBacklogMonitor runs the backlog metric control loop.
	ServiceModeBacklogMonitor ServiceMode = "backlog-monitor"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeBacklogMonitor}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeBacklogMonitor:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, backlog-monitor)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// MetricSinkKind names a destination for the backlog metric.
type MetricSinkKind string

const (
	MetricSinkCloudWatch MetricSinkKind = "cloudwatch"
	MetricSinkStatsd     MetricSinkKind = "statsd"
	MetricSinkPrometheus MetricSinkKind = "prometheus"
)

// MonitorConfig contains backlog monitor configuration.
type MonitorConfig struct {
	// FleetName is the Auto Scaling group whose desired capacity divides the backlog.
	// Falls back to AGN when unset.
	FleetName string `env:"MONITOR_FLEET_NAME"`

	// Interval is the tick period.
	Interval time.Duration `env:"MONITOR_INTERVAL" envDefault:"2s"`

	// TickTimeout bounds a single sample+publish cycle.
	TickTimeout time.Duration `env:"MONITOR_TICK_TIMEOUT" envDefault:"10s"`

	// FleetNotFoundLimit is the number of consecutive mid-run FleetNotFound
	// ticks after which the loop stops. 0 never stops.
	FleetNotFoundLimit int `env:"MONITOR_FLEET_NOT_FOUND_LIMIT" envDefault:"3"`

	MetricNamespace string `env:"MONITOR_METRIC_NAMESPACE" envDefault:"detectq"`
	MetricName      string `env:"MONITOR_METRIC_NAME"      envDefault:"BacklogPerInstance"`
	MetricDimension string `env:"MONITOR_METRIC_DIMENSION" envDefault:"AutoScalingGroupName"`

	// MetricSinks lists where each sample is published.
	MetricSinks []MetricSinkKind `env:"MONITOR_METRIC_SINKS" envDefault:"cloudwatch" envSeparator:","`
}

// Sanitize applies guardrails to monitor configuration values.
func (m *MonitorConfig) Sanitize() {
	m.FleetName = envFallback(m.FleetName, "AGN")
	if m.Interval < time.Second {
		m.Interval = time.Second
	}
	if m.TickTimeout < time.Second {
		m.TickTimeout = time.Second
	}
	if limit := m.Interval * 5; m.TickTimeout > limit {
		m.TickTimeout = limit
	}
	if m.FleetNotFoundLimit < 0 {
		m.FleetNotFoundLimit = 0
	}
	if m.MetricNamespace == "" {
		m.MetricNamespace = "detectq"
	}
	if m.MetricName == "" {
		m.MetricName = "BacklogPerInstance"
	}
	if m.MetricDimension == "" {
		m.MetricDimension = "AutoScalingGroupName"
	}

	seen := make(map[MetricSinkKind]bool, len(m.MetricSinks))
	sinks := m.MetricSinks[:0]
	for _, s := range m.MetricSinks {
		s = MetricSinkKind(strings.ToLower(strings.TrimSpace(string(s))))
		switch s {
		case MetricSinkCloudWatch, MetricSinkStatsd, MetricSinkPrometheus:
			if !seen[s] {
				seen[s] = true
				sinks = append(sinks, s)
			}
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, MetricSinkCloudWatch)
	}
	m.MetricSinks = sinks
}

// HasSink reports whether kind is among the configured metric sinks.
func (m *MonitorConfig) HasSink(kind MetricSinkKind) bool {
	for _, s := range m.MetricSinks {
		if s == kind {
			return true
		}
	}
	return false
}
