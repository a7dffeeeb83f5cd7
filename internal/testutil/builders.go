package testutil

import (
	"maps"
	"time"

	"github.com/target/detectq/internal/domain/model"
)

// SamplePayload is a tiny JPEG header used where tests need non-empty bytes.
var SamplePayload = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

// WorkRequestBuilder provides a fluent interface for building WorkRequest values.
type WorkRequestBuilder struct {
	req model.WorkRequest
}

// NewWorkRequest creates a builder with a valid JPEG submission from caller "42".
func NewWorkRequest() *WorkRequestBuilder {
	return &WorkRequestBuilder{req: model.WorkRequest{
		CallerRef:   "42",
		Payload:     append([]byte(nil), SamplePayload...),
		ContentType: "image/jpeg",
	}}
}

// WithCallerRef sets the caller reference.
func (b *WorkRequestBuilder) WithCallerRef(ref string) *WorkRequestBuilder {
	b.req.CallerRef = ref
	return b
}

// WithPayload sets the payload bytes.
func (b *WorkRequestBuilder) WithPayload(p []byte) *WorkRequestBuilder {
	b.req.Payload = p
	return b
}

// WithContentType sets the content type.
func (b *WorkRequestBuilder) WithContentType(ct string) *WorkRequestBuilder {
	b.req.ContentType = ct
	return b
}

// WithMetadata merges metadata into the request.
func (b *WorkRequestBuilder) WithMetadata(md map[string]string) *WorkRequestBuilder {
	if b.req.Metadata == nil {
		b.req.Metadata = map[string]string{}
	}
	maps.Copy(b.req.Metadata, md)
	return b
}

// Build returns a pointer to a copy of the request.
func (b *WorkRequestBuilder) Build() *model.WorkRequest {
	out := b.req
	return &out
}

// ResultRecordBuilder builds ResultRecord values.
type ResultRecordBuilder struct {
	rec model.ResultRecord
}

// NewResultRecord starts a record for jobID completed at TestTime.
func NewResultRecord(jobID string) *ResultRecordBuilder {
	return &ResultRecordBuilder{rec: model.ResultRecord{
		JobID:       jobID,
		Labels:      map[string]int{},
		CompletedAt: TestTime(),
	}}
}

// WithLabel sets the count for a label.
func (b *ResultRecordBuilder) WithLabel(label string, n int) *ResultRecordBuilder {
	b.rec.Labels[label] = n
	return b
}

// CompletedAt sets the completion time.
func (b *ResultRecordBuilder) CompletedAt(at time.Time) *ResultRecordBuilder {
	b.rec.CompletedAt = at
	return b
}

// Build returns a pointer to a copy of the record.
func (b *ResultRecordBuilder) Build() *model.ResultRecord {
	out := b.rec
	out.Labels = maps.Clone(b.rec.Labels)
	return &out
}
