package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - aws.go: AWS region/endpoint, object store, queue and result store backends
//   - auth.go: bearer token verification
//   - database.go: Postgres and Redis
//   - http.go: HTTP server and webhook extraction
//   - services.go: service mode and backlog monitor
//   - observability.go: statsd, prometheus and failure notifications
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, verbose errors).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Services is a comma-delimited list of service modes to run.
	Services string `env:"SERVICES" envDefault:"http"`

	AWS        AWSConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Results    ResultsConfig
	Acceptance AcceptanceConfig
	Monitor    MonitorConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP    HTTPConfig
	Inbound InboundConfig
	Auth    AuthConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}

	c.AWS.Sanitize()
	c.Storage.Sanitize()
	c.Queue.Sanitize()
	c.Results.Sanitize()
	c.Acceptance.Sanitize()
	c.Monitor.Sanitize()
	c.Postgres.Sanitize()
	c.HTTP.Sanitize()
	c.Inbound.Sanitize()
	c.Auth.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks NODE_ENV as a fallback for DEV.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[ServiceModeHTTP]
}

// IsBacklogMonitorEnabled returns true if the backlog monitor service is enabled.
func (c *AppConfig) IsBacklogMonitorEnabled() bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[ServiceModeBacklogMonitor]
}

// envFallback returns the value of the legacy variable key when current is empty.
func envFallback(current, key string) string {
	if strings.TrimSpace(current) != "" {
		return strings.TrimSpace(current)
	}
	return strings.TrimSpace(os.Getenv(key))
}
