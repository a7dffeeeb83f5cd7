package data

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
)

var _ core.JobQueue = (*RedisJobQueue)(nil)

// RedisJobQueue is a JobQueue backed by a Redis list. Producers RPUSH and
// workers are expected to BLPOP (or BLMOVE for at-least-once).
type RedisJobQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// RedisJobQueueOptions configures NewRedisJobQueue.
type RedisJobQueueOptions struct {
	Client redis.UniversalClient
	Name   string
	Logger *slog.Logger
}

// NewRedisJobQueue constructs a RedisJobQueue.
func NewRedisJobQueue(opts RedisJobQueueOptions) (*RedisJobQueue, error) {
	if opts.Name == "" {
		return nil, ErrQueueNameRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisJobQueue{
		client: opts.Client,
		key:    "detectq:queue:" + opts.Name,
		logger: logger.With("component", "redis_job_queue", "queue", opts.Name),
	}, nil
}

// Enqueue appends the encoded descriptor to the tail of the list.
func (q *RedisJobQueue) Enqueue(ctx context.Context, job model.JobDescriptor) error {
	body, err := job.Encode()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode job")
	}
	if err := q.client.RPush(ctx, q.key, body).Err(); err != nil {
		return apperrors.Queue(err, "redis rpush")
	}
	q.logger.DebugContext(ctx, "job enqueued", "job_id", job.JobID)
	return nil
}

// ApproximateDepth returns the list length.
func (q *RedisJobQueue) ApproximateDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, apperrors.Queue(err, "redis llen")
	}
	return n, nil
}

// Key returns the Redis key holding the list.
func (q *RedisJobQueue) Key() string { return q.key }
