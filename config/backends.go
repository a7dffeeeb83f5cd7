package config

import (
	"fmt"
	"strings"
)

// UnmarshalText implements encoding.TextUnmarshaler for QueueBackend.
func (b *QueueBackend) UnmarshalText(text []byte) error {
	v := QueueBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case QueueBackendSQS, QueueBackendRedis, QueueBackendRabbitMQ:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid QueueBackend: %q (valid options: sqs, redis, rabbitmq)", v)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for ResultsBackend.
func (b *ResultsBackend) UnmarshalText(text []byte) error {
	v := ResultsBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case ResultsBackendDynamoDB, ResultsBackendPostgres:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid ResultsBackend: %q (valid options: dynamodb, postgres)", v)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for MetricSinkKind.
func (k *MetricSinkKind) UnmarshalText(text []byte) error {
	v := MetricSinkKind(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case MetricSinkCloudWatch, MetricSinkStatsd, MetricSinkPrometheus:
		*k = v
		return nil
	default:
		return fmt.Errorf("invalid metric sink: %q (valid options: cloudwatch, statsd, prometheus)", v)
	}
}
