package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - backlog-monitor",
			input:    "backlog-monitor",
			expected: map[ServiceMode]bool{ServiceModeBacklogMonitor: true},
		},
		{
			name:  "both with whitespace",
			input: " http , backlog-monitor ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeBacklogMonitor: true,
			},
		},
		{name: "empty string", input: "", expectError: true},
		{name: "only commas", input: ",,", expectError: true},
		{name: "invalid service", input: "http,worker", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("ParseServices(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseServices(%q) unexpected error: %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseServices(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "backlog-monitor"}
	if cfg.IsHTTPServerEnabled() {
		t.Error("http should be disabled")
	}
	if !cfg.IsBacklogMonitorEnabled() {
		t.Error("backlog-monitor should be enabled")
	}

	cfg.Services = "bogus"
	if cfg.IsHTTPServerEnabled() || cfg.IsBacklogMonitorEnabled() {
		t.Error("invalid services should enable nothing")
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Services != "http" {
		t.Errorf("Services = %q, want http", cfg.Services)
	}
	if cfg.Monitor.Interval != 2*time.Second {
		t.Errorf("Monitor.Interval = %v, want 2s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.MetricName != "BacklogPerInstance" || cfg.Monitor.MetricDimension != "AutoScalingGroupName" {
		t.Errorf("unexpected metric naming: %+v", cfg.Monitor)
	}
	if !reflect.DeepEqual(cfg.Monitor.MetricSinks, []MetricSinkKind{MetricSinkCloudWatch}) {
		t.Errorf("MetricSinks = %v", cfg.Monitor.MetricSinks)
	}
	if cfg.Queue.Backend != QueueBackendSQS || cfg.Results.Backend != ResultsBackendDynamoDB {
		t.Errorf("unexpected backends: %s/%s", cfg.Queue.Backend, cfg.Results.Backend)
	}
	if cfg.Results.KeyAttribute != "prediction_id" {
		t.Errorf("KeyAttribute = %q", cfg.Results.KeyAttribute)
	}
	if cfg.Storage.KeyPrefix != "photos" || cfg.Storage.MaxPayloadBytes != 10485760 {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.HTTP.Addr != ":8443" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Acceptance.Enabled {
		t.Error("acceptance markers should be off by default")
	}
	if cfg.Postgres.MaxOpenConns != 10 || cfg.Postgres.MaxIdleConns != 2 || cfg.Postgres.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("unexpected pool defaults: %+v", cfg.Postgres)
	}
}

func TestAppConfig_LegacyFallbacks(t *testing.T) {
	t.Setenv("REGION", "us-west-2")
	t.Setenv("BUCKET_NAME", "legacy-bucket")
	t.Setenv("AGN", "legacy-asg")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.AWS.Region != "us-west-2" {
		t.Errorf("Region = %q", cfg.AWS.Region)
	}
	if cfg.Storage.Bucket != "legacy-bucket" {
		t.Errorf("Bucket = %q", cfg.Storage.Bucket)
	}
	if cfg.Monitor.FleetName != "legacy-asg" {
		t.Errorf("FleetName = %q", cfg.Monitor.FleetName)
	}

	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("MONITOR_FLEET_NAME", "workers")
	cfg = AppConfig{}
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()
	if cfg.AWS.Region != "eu-west-1" || cfg.Monitor.FleetName != "workers" {
		t.Errorf("new names should win over legacy: %s %s", cfg.AWS.Region, cfg.Monitor.FleetName)
	}
}

func TestAppConfig_ParseBackends(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "RabbitMQ")
	t.Setenv("RESULTS_BACKEND", "postgres")
	t.Setenv("MONITOR_METRIC_SINKS", "statsd,prometheus,statsd")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Queue.Backend != QueueBackendRabbitMQ {
		t.Errorf("Queue.Backend = %q", cfg.Queue.Backend)
	}
	if cfg.Results.Backend != ResultsBackendPostgres {
		t.Errorf("Results.Backend = %q", cfg.Results.Backend)
	}
	want := []MetricSinkKind{MetricSinkStatsd, MetricSinkPrometheus}
	if !reflect.DeepEqual(cfg.Monitor.MetricSinks, want) {
		t.Errorf("MetricSinks = %v, want %v", cfg.Monitor.MetricSinks, want)
	}
	if cfg.Monitor.HasSink(MetricSinkCloudWatch) {
		t.Error("cloudwatch should not be configured")
	}
}

func TestAppConfig_ParseRejectsUnknownBackend(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "kafka")
	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Error("expected error for unknown queue backend")
	}
}

func TestMonitorConfig_Sanitize(t *testing.T) {
	m := MonitorConfig{Interval: 100 * time.Millisecond, TickTimeout: time.Minute, FleetNotFoundLimit: -2}
	m.Sanitize()

	if m.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", m.Interval)
	}
	if m.TickTimeout != 5*time.Second {
		t.Errorf("TickTimeout = %v, want 5s", m.TickTimeout)
	}
	if m.FleetNotFoundLimit != 0 {
		t.Errorf("FleetNotFoundLimit = %d, want 0", m.FleetNotFoundLimit)
	}
	if !m.HasSink(MetricSinkCloudWatch) {
		t.Error("empty sinks should default to cloudwatch")
	}
}

func TestDBConfig_Sanitize(t *testing.T) {
	c := DBConfig{MaxOpenConns: 0, MaxIdleConns: 50, ConnMaxLifetime: -time.Second}
	c.Sanitize()

	if c.MaxOpenConns != 10 {
		t.Errorf("MaxOpenConns = %d, want 10", c.MaxOpenConns)
	}
	if c.MaxIdleConns != 10 {
		t.Errorf("MaxIdleConns = %d, want capped at MaxOpenConns", c.MaxIdleConns)
	}
	if c.ConnMaxLifetime != 0 {
		t.Errorf("ConnMaxLifetime = %v, want 0", c.ConnMaxLifetime)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	c := ObservabilityNotificationsConfig{
		Enabled:    true,
		RetryLimit: -1,
		Slack:      SlackNotificationConfig{Enabled: true},
		PagerDuty:  PagerDutyNotificationConfig{Enabled: true, RoutingKey: " key "},
	}
	c.Sanitize()

	if c.Slack.Enabled {
		t.Error("slack without webhook should be disabled")
	}
	if !c.PagerDuty.Enabled || c.PagerDuty.RoutingKey != "key" {
		t.Errorf("pagerduty should stay enabled with trimmed key: %+v", c.PagerDuty)
	}
	if c.RetryLimit != 0 || c.Timeout != 5*time.Second {
		t.Errorf("unexpected clamps: retry=%d timeout=%v", c.RetryLimit, c.Timeout)
	}
	if c.Slack.Username != "detectq" {
		t.Errorf("Slack.Username = %q", c.Slack.Username)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	c := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	c.Sanitize()
	if c.IsEnabled() {
		t.Error("metrics with blank address should be disabled")
	}
}
