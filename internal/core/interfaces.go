package core

import (
	"context"
	"io"

	"github.com/target/detectq/internal/domain/model"
)

// This file contains the ports the services depend on. Adapters under
// internal/adapters and internal/data provide the implementations.

// ObjectStore persists submitted payloads.
type ObjectStore interface {
	// Put writes body under key and returns its location. An existing object
	// at the same key is overwritten.
	Put(ctx context.Context, req PutObjectRequest) (model.PayloadRef, error)
}

// PutObjectRequest groups the parameters for ObjectStore.Put.
type PutObjectRequest struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// JobQueue is the durable FIFO-ish channel between the dispatcher and workers.
type JobQueue interface {
	// Enqueue publishes a job descriptor. Delivery is at-least-once.
	Enqueue(ctx context.Context, job model.JobDescriptor) error
	// ApproximateDepth reports the number of visible messages. The value may
	// lag reality by a few seconds.
	ApproximateDepth(ctx context.Context) (int64, error)
}

// ResultStore is the key-value store workers write results into.
type ResultStore interface {
	// Get returns the result for jobID. found is false when no record exists.
	Get(ctx context.Context, jobID string) (rec *model.ResultRecord, found bool, err error)
	// Put writes or overwrites the result for rec.JobID.
	Put(ctx context.Context, rec *model.ResultRecord) error
}

// AcceptanceStore remembers which job ids were accepted so a lookup can tell
// "never submitted" apart from "still running".
type AcceptanceStore interface {
	MarkAccepted(ctx context.Context, jobID string) error
	IsAccepted(ctx context.Context, jobID string) (bool, error)
}

// FleetSizeSource reports the desired size of the worker fleet.
type FleetSizeSource interface {
	// DesiredSize returns the desired instance count for fleet. It returns an
	// ErrCodeFleetNotFound error when the fleet does not exist.
	DesiredSize(ctx context.Context, fleet string) (int64, error)
}

// MetricsSink publishes custom metric points.
type MetricsSink interface {
	Publish(ctx context.Context, point model.MetricPoint) error
}
