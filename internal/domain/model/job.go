// Package model defines the core data types exchanged between the dispatcher,
// the job queue, the result store and the backlog monitor.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PayloadRef locates a stored payload in the object store.
type PayloadRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// String renders the reference as an s3-style URI.
func (r PayloadRef) String() string {
	if r.Bucket == "" {
		return r.Key
	}
	return "s3://" + r.Bucket + "/" + strings.TrimPrefix(r.Key, "/")
}

// JobDescriptor is the message placed on the job queue. Workers consume it,
// fetch the payload through PayloadRef and write a ResultRecord keyed by JobID.
type JobDescriptor struct {
	JobID       string            `json:"job_id"`
	PayloadRef  PayloadRef        `json:"payload_ref"`
	CallerRef   string            `json:"caller_ref"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
}

// Encode serializes the descriptor into a queue message body.
func (d JobDescriptor) Encode() ([]byte, error) {
	if d.JobID == "" {
		return nil, fmt.Errorf("encode job descriptor: job_id is required")
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode job descriptor %s: %w", d.JobID, err)
	}
	return b, nil
}

// DecodeJobDescriptor parses a queue message body produced by Encode.
func DecodeJobDescriptor(body []byte) (JobDescriptor, error) {
	var d JobDescriptor
	if err := json.Unmarshal(body, &d); err != nil {
		return JobDescriptor{}, fmt.Errorf("decode job descriptor: %w", err)
	}
	if d.JobID == "" {
		return JobDescriptor{}, fmt.Errorf("decode job descriptor: job_id is required")
	}
	return d, nil
}

// AcknowledgementText is echoed back to the caller once a job is enqueued.
const AcknowledgementText = "Your image is being processed. Please wait..."

// TrackingHandle is returned to the caller of Submit and later presented to
// the result resolver.
type TrackingHandle struct {
	JobID           string     `json:"job_id"`
	PayloadRef      PayloadRef `json:"payload_ref"`
	Acknowledgement string     `json:"message"`
}
