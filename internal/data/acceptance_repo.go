package data

import (
	"context"
	"strconv"
	"time"

	"github.com/target/detectq/internal/core"
	apperrors "github.com/target/detectq/internal/errors"
)

var _ core.AcceptanceStore = (*AcceptanceRepo)(nil)

// DefaultAcceptanceKeyPrefix namespaces acceptance markers in the cache.
const DefaultAcceptanceKeyPrefix = "detectq:accepted:"

// AcceptanceRepo records accepted job ids in a cache with a TTL.
type AcceptanceRepo struct {
	cache  core.CacheRepository
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// AcceptanceRepoOptions configures NewAcceptanceRepo.
type AcceptanceRepoOptions struct {
	Cache     core.CacheRepository
	TTL       time.Duration
	KeyPrefix string
	Now       func() time.Time
}

// NewAcceptanceRepo constructs an AcceptanceRepo.
func NewAcceptanceRepo(opts AcceptanceRepoOptions) *AcceptanceRepo {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultAcceptanceKeyPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AcceptanceRepo{cache: opts.Cache, ttl: opts.TTL, prefix: prefix, now: now}
}

// MarkAccepted stores a marker for jobID. Re-marking an existing id is a no-op.
func (r *AcceptanceRepo) MarkAccepted(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrJobIDRequired
	}
	stamp := strconv.FormatInt(r.now().UTC().Unix(), 10)
	if _, err := r.cache.SetIfNotExists(ctx, r.prefix+jobID, []byte(stamp), r.ttl); err != nil {
		return apperrors.Storage(err, "mark job accepted")
	}
	return nil
}

// IsAccepted reports whether a marker exists for jobID.
func (r *AcceptanceRepo) IsAccepted(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, ErrJobIDRequired
	}
	ok, err := r.cache.Exists(ctx, r.prefix+jobID)
	if err != nil {
		return false, apperrors.Storage(err, "check job acceptance")
	}
	return ok, nil
}
