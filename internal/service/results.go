package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
	"github.com/target/detectq/internal/observability/metrics"
)

// ResultResolverServiceOptions groups dependencies for ResultResolverService.
type ResultResolverServiceOptions struct {
	Results    core.ResultStore     // Required: worker result store
	Acceptance core.AcceptanceStore // Optional: enables not_found for unknown ids
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// ResultResolverService turns stored worker results into caller-facing summaries.
type ResultResolverService struct {
	results    core.ResultStore
	acceptance core.AcceptanceStore
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// NewResultResolverService constructs a new ResultResolverService.
func NewResultResolverService(opts ResultResolverServiceOptions) (*ResultResolverService, error) {
	if opts.Results == nil {
		return nil, errors.New("ResultStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultResolverService{
		results:    opts.Results,
		acceptance: opts.Acceptance,
		logger:     logger.With("component", "result_resolver"),
		metrics:    opts.Metrics,
	}, nil
}

// MustNewResultResolverService constructs a new ResultResolverService and panics on error.
func MustNewResultResolverService(opts ResultResolverServiceOptions) *ResultResolverService {
	svc, err := NewResultResolverService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ResultResolverService: %v", err))
	}
	return svc
}

// Resolve looks up the result for jobID.
//
// A missing record is not an error: it resolves to pending, or to not_found
// when acceptance markers are configured and none exists for jobID. Store
// failures are returned as storage errors so callers never mistake an outage
// for a pending job.
func (s *ResultResolverService) Resolve(ctx context.Context, jobID string) (*model.Resolution, error) {
	res, err := s.resolve(ctx, jobID)
	if err != nil {
		s.metrics.Resolution(metrics.ResultError)
		return nil, err
	}
	s.metrics.Resolution(string(res.Status))
	return res, nil
}

func (s *ResultResolverService) resolve(ctx context.Context, jobID string) (*model.Resolution, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, apperrors.InvalidRequest("job_id", "job_id is required")
	}

	rec, found, err := s.results.Get(ctx, jobID)
	if err != nil {
		s.logger.ErrorContext(ctx, "result lookup failed", "job_id", jobID, "error", err)
		if apperrors.IsStorage(err) {
			return nil, err
		}
		return nil, apperrors.Storage(err, "failed to read result")
	}

	if found && rec != nil {
		completedAt := rec.CompletedAt
		res := &model.Resolution{
			JobID:   jobID,
			Status:  model.ResolutionComplete,
			Summary: model.FormatSummary(rec.Labels),
			Labels:  rec.Labels,
		}
		if !completedAt.IsZero() {
			res.CompletedAt = &completedAt
		}
		return res, nil
	}

	status, err := s.absentStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.Resolution{JobID: jobID, Status: status}, nil
}

func (s *ResultResolverService) absentStatus(ctx context.Context, jobID string) (model.ResolutionStatus, error) {
	if s.acceptance == nil {
		return model.ResolutionPending, nil
	}
	accepted, err := s.acceptance.IsAccepted(ctx, jobID)
	if err != nil {
		s.logger.ErrorContext(ctx, "acceptance marker lookup failed", "job_id", jobID, "error", err)
		if apperrors.IsStorage(err) {
			return "", err
		}
		return "", apperrors.Storage(err, "failed to read acceptance marker")
	}
	if !accepted {
		return model.ResolutionNotFound, nil
	}
	return model.ResolutionPending, nil
}
