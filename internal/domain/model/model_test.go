package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       *WorkRequest
		maxBytes  int
		wantField string
	}{
		{name: "nil request", req: nil, wantField: "request"},
		{name: "empty payload", req: &WorkRequest{CallerRef: "42"}, wantField: "payload"},
		{name: "blank caller", req: &WorkRequest{Payload: []byte("x"), CallerRef: "  "}, wantField: "caller_ref"},
		{
			name:      "oversize payload",
			req:       &WorkRequest{Payload: []byte("12345"), CallerRef: "42"},
			maxBytes:  4,
			wantField: "payload",
		},
		{name: "valid", req: &WorkRequest{Payload: []byte("12345"), CallerRef: "42"}, maxBytes: 5},
		{name: "limit disabled", req: &WorkRequest{Payload: []byte("12345"), CallerRef: "42"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.maxBytes)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var issue *ValidationIssue
			require.ErrorAs(t, err, &issue)
			assert.Equal(t, tt.wantField, issue.Field)
		})
	}
}

func TestWorkRequest_NormalizedContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", (&WorkRequest{ContentType: "Image/JPEG; q=1"}).NormalizedContentType())
	assert.Equal(t, DefaultContentType, (&WorkRequest{}).NormalizedContentType())
}

func TestJobDescriptor_RoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := JobDescriptor{
		JobID:      "abc",
		PayloadRef: PayloadRef{Bucket: "b", Key: "photos/42/abc.jpg"},
		CallerRef:  "42",
		EnqueuedAt: at,
	}
	body, err := d.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"job_id":"abc"`)

	got, err := DecodeJobDescriptor(body)
	require.NoError(t, err)
	assert.Equal(t, d, got)

	_, err = DecodeJobDescriptor([]byte(`{"caller_ref":"42"}`))
	assert.Error(t, err)
	_, err = JobDescriptor{}.Encode()
	assert.Error(t, err)
}

func TestPayloadRef_String(t *testing.T) {
	assert.Equal(t, "s3://bucket/photos/a.jpg", PayloadRef{Bucket: "bucket", Key: "/photos/a.jpg"}.String())
	assert.Equal(t, "photos/a.jpg", PayloadRef{Key: "photos/a.jpg"}.String())
}

func TestFormatSummary(t *testing.T) {
	got := FormatSummary(map[string]int{"person": 2, "dog": 1})
	assert.Equal(t, "Objects Detected:\ndog: 1\nperson: 2\n", got)

	// Stable across calls regardless of map iteration order.
	for range 10 {
		assert.Equal(t, got, FormatSummary(map[string]int{"dog": 1, "person": 2}))
	}

	assert.Equal(t, "Objects Detected:\n", FormatSummary(nil))
}

func TestCountLabels(t *testing.T) {
	got := CountLabels([]string{"person", "dog", "person", " ", "person"})
	assert.Equal(t, map[string]int{"person": 3, "dog": 1}, got)
	assert.True(t, strings.HasPrefix(FormatSummary(got), "Objects Detected:"))
}

func TestComputeBacklogPerInstance(t *testing.T) {
	tests := []struct {
		depth, size int64
		want        float64
	}{
		{depth: 10, size: 5, want: 2},
		{depth: 7, size: 2, want: 3.5},
		{depth: 10, size: 0, want: 10},
		{depth: 0, size: 3, want: 0},
		{depth: -4, size: 3, want: 0},
		{depth: 3, size: -1, want: 3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ComputeBacklogPerInstance(tt.depth, tt.size), 1e-9)
	}
}

func TestNewBacklogSample(t *testing.T) {
	at := time.Now()
	s := NewBacklogSample("workers", 12, 4, at)
	assert.Equal(t, "workers", s.Fleet)
	assert.InDelta(t, 3.0, s.BacklogPerInstance, 1e-9)
	assert.Equal(t, at, s.SampledAt)
}
