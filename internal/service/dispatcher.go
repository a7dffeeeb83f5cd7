package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
	"github.com/target/detectq/internal/observability/metrics"
)

// DispatcherConfig holds the dispatcher's tunables.
type DispatcherConfig struct {
	KeyPrefix       string
	MaxPayloadBytes int
}

// DispatcherServiceOptions groups dependencies for DispatcherService.
type DispatcherServiceOptions struct {
	Store      core.ObjectStore     // Required: payload storage
	Queue      core.JobQueue        // Required: job queue
	Acceptance core.AcceptanceStore // Optional: accepted-job markers
	Config     DispatcherConfig
	Logger     *slog.Logger      // Optional: structured logger
	Metrics    *metrics.Recorder // Optional: metrics recorder
	Now        func() time.Time  // Optional: clock override for tests
	NewID      func() string     // Optional: id suffix override for tests
}

// DispatcherService accepts work requests, stores their payload and enqueues
// a job for the worker fleet.
type DispatcherService struct {
	store      core.ObjectStore
	queue      core.JobQueue
	acceptance core.AcceptanceStore
	cfg        DispatcherConfig
	logger     *slog.Logger
	metrics    *metrics.Recorder
	now        func() time.Time
	newID      func() string
}

// NewDispatcherService constructs a new DispatcherService.
func NewDispatcherService(opts DispatcherServiceOptions) (*DispatcherService, error) {
	if opts.Store == nil {
		return nil, errors.New("ObjectStore is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("JobQueue is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	cfg := opts.Config
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")

	return &DispatcherService{
		store:      opts.Store,
		queue:      opts.Queue,
		acceptance: opts.Acceptance,
		cfg:        cfg,
		logger:     logger.With("component", "dispatcher"),
		metrics:    opts.Metrics,
		now:        now,
		newID:      newID,
	}, nil
}

// MustNewDispatcherService constructs a new DispatcherService and panics on error.
func MustNewDispatcherService(opts DispatcherServiceOptions) *DispatcherService {
	svc, err := NewDispatcherService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create DispatcherService: %v", err))
	}
	return svc
}

// Submit validates req, uploads its payload and enqueues a job referencing it.
//
// When acceptance markers are configured the marker is written first, so a
// returned handle never resolves to not_found; a failed marker write fails the
// submission before anything is stored. The upload happens strictly before
// the enqueue: if the upload fails nothing is enqueued. If the enqueue fails
// the stored payload is left in place. No step is retried here.
func (s *DispatcherService) Submit(ctx context.Context, req *model.WorkRequest) (*model.TrackingHandle, error) {
	start := s.now()
	handle, err := s.submit(ctx, req)

	outcome := metrics.Outcome{Result: metrics.ResultSuccess, Duration: s.now().Sub(start), Err: err}
	if err != nil {
		outcome.Result = metrics.ResultError
	}
	s.metrics.Submission(outcome)
	return handle, err
}

func (s *DispatcherService) submit(ctx context.Context, req *model.WorkRequest) (*model.TrackingHandle, error) {
	if err := req.Validate(s.cfg.MaxPayloadBytes); err != nil {
		var issue *model.ValidationIssue
		if errors.As(err, &issue) {
			return nil, apperrors.InvalidRequest(issue.Field, issue.Message)
		}
		return nil, apperrors.Validation(err.Error())
	}

	contentType := req.NormalizedContentType()
	jobID := s.jobID(req.Payload)
	key := s.objectKey(req.CallerRef, jobID, contentType)

	if err := s.markAccepted(ctx, jobID); err != nil {
		return nil, err
	}

	ref, err := s.store.Put(ctx, core.PutObjectRequest{
		Key:         key,
		Body:        bytes.NewReader(req.Payload),
		Size:        int64(len(req.Payload)),
		ContentType: contentType,
		Metadata:    map[string]string{"job-id": jobID, "caller-ref": url.QueryEscape(req.CallerRef)},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "payload upload failed",
			"job_id", jobID,
			"caller_ref", req.CallerRef,
			"key", key,
			"error", err,
		)
		return nil, apperrors.Storage(err, "failed to store payload")
	}

	job := model.JobDescriptor{
		JobID:       jobID,
		PayloadRef:  ref,
		CallerRef:   req.CallerRef,
		ContentType: contentType,
		Metadata:    req.Metadata,
		EnqueuedAt:  s.now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "enqueue failed; payload left in store",
			"job_id", jobID,
			"caller_ref", req.CallerRef,
			"payload_ref", ref.String(),
			"error", err,
		)
		if apperrors.IsQueue(err) {
			return nil, err
		}
		return nil, apperrors.Queue(err, "failed to enqueue job")
	}

	s.logger.InfoContext(ctx, "job enqueued",
		"job_id", jobID,
		"caller_ref", req.CallerRef,
		"payload_ref", ref.String(),
		"size", len(req.Payload),
	)

	return &model.TrackingHandle{
		JobID:           jobID,
		PayloadRef:      ref,
		Acknowledgement: model.AcknowledgementText,
	}, nil
}

// markAccepted records the job id for later NotFound/Pending disambiguation.
// A marker left by a submission that later fails reads as pending, the same
// as a store without markers.
func (s *DispatcherService) markAccepted(ctx context.Context, jobID string) error {
	if s.acceptance == nil {
		return nil
	}
	if err := s.acceptance.MarkAccepted(ctx, jobID); err != nil {
		s.metrics.AcceptanceMarkerFailed(err)
		s.logger.ErrorContext(ctx, "failed to write acceptance marker",
			"job_id", jobID,
			"error", err,
		)
		return apperrors.Storage(err, "failed to record accepted job")
	}
	return nil
}

// jobID combines a content digest with a random suffix so identical payloads
// submitted concurrently still get distinct ids.
func (s *DispatcherService) jobID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8]) + "-" + s.newID()
}

func (s *DispatcherService) objectKey(callerRef, jobID, contentType string) string {
	name := jobID + extensionFor(contentType)
	parts := make([]string, 0, 3)
	if s.cfg.KeyPrefix != "" {
		parts = append(parts, s.cfg.KeyPrefix)
	}
	parts = append(parts, sanitizeKeySegment(callerRef), name)
	return strings.Join(parts, "/")
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

// sanitizeKeySegment keeps object keys free of path separators and characters
// that need escaping in S3 URLs.
func sanitizeKeySegment(v string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(v) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "anonymous"
	}
	return out
}
