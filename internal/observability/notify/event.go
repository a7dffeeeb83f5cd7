// Package notify defines failure notifications and the sinks that deliver them.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
)

// FailurePayload is the canonical data emitted for an operational failure.
type FailurePayload struct {
	// Component names the emitting service, e.g. "backlog_monitor".
	Component string
	// Subject identifies what failed, e.g. the fleet name.
	Subject    string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// DedupKey groups repeated notifications about the same failure.
func (p FailurePayload) DedupKey() string {
	key := p.Component + ":" + p.Subject + ":" + p.ErrorClass
	for len(key) > 0 && key[len(key)-1] == ':' {
		key = key[:len(key)-1]
	}
	return key
}

// Sink describes a destination capable of consuming failure notifications.
type Sink interface {
	SendFailure(ctx context.Context, payload FailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload FailurePayload) error

// SendFailure implements the Sink interface.
func (f SinkFunc) SendFailure(ctx context.Context, payload FailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
