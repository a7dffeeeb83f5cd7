// Package rabbitmq provides an AMQP 0-9-1 implementation of the job queue.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
)

// Channel is the subset of *amqp.Channel used by Queue.
type Channel interface {
	Confirm(noWait bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithDeferredConfirmWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) (*amqp.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

// publishTimeout caps how long Enqueue waits for a confirm when the caller's
// context has no deadline.
const publishTimeout = 10 * time.Second

// Options configures a Queue.
type Options struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
	Logger     *slog.Logger
}

// Queue implements core.JobQueue over a durable AMQP queue bound to a direct
// exchange. Messages are persistent and published with publisher confirms.
type Queue struct {
	open   func() (Channel, error)
	closer func() error
	opts   Options
	logger *slog.Logger

	mu sync.Mutex
	ch Channel

	inspecting atomic.Bool
}

var errDepthReadInFlight = errors.New("previous depth read still in flight")

// Dial connects to the broker and declares the exchange, queue and binding.
func Dial(opts Options) (*Queue, error) {
	if opts.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	open := func() (Channel, error) {
		ch, chErr := conn.Channel()
		if chErr != nil {
			return nil, chErr
		}
		return ch, nil
	}
	q, err := newQueue(opts, open, conn.Close)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return q, nil
}

func newQueue(opts Options, open func() (Channel, error), closer func() error) (*Queue, error) {
	if opts.Queue == "" {
		return nil, errors.New("queue name is required")
	}
	if opts.RoutingKey == "" {
		opts.RoutingKey = opts.Queue
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		open:   open,
		closer: closer,
		opts:   opts,
		logger: logger.With("component", "rabbitmq_queue", "queue", opts.Queue),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.channelLocked(); err != nil {
		return nil, err
	}
	return q, nil
}

// channelLocked returns the current channel, opening and declaring a new one
// if the broker closed the previous. Callers must hold q.mu.
func (q *Queue) channelLocked() (Channel, error) {
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	ch, err := q.open()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := q.declare(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	q.ch = ch
	return ch, nil
}

func (q *Queue) declare(ch Channel) error {
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	if q.opts.Exchange != "" {
		if err := ch.ExchangeDeclare(q.opts.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %q: %w", q.opts.Exchange, err)
		}
	}
	if _, err := ch.QueueDeclare(q.opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", q.opts.Queue, err)
	}
	if q.opts.Exchange != "" {
		if err := ch.QueueBind(q.opts.Queue, q.opts.RoutingKey, q.opts.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %q: %w", q.opts.Queue, err)
		}
	}
	return nil
}

// Enqueue publishes job and waits for the broker to confirm it.
func (q *Queue) Enqueue(ctx context.Context, job model.JobDescriptor) error {
	body, err := job.Encode()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job descriptor")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}

	q.mu.Lock()
	ch, err := q.channelLocked()
	q.mu.Unlock()
	if err != nil {
		return apperrors.Queue(err, "rabbitmq unavailable")
	}

	// With no exchange configured the default exchange routes by queue name.
	key := q.opts.RoutingKey
	if q.opts.Exchange == "" {
		key = q.opts.Queue
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, q.opts.Exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.JobID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	})
	if err != nil {
		return apperrors.Queue(err, "failed to publish job")
	}
	if dc != nil {
		acked, waitErr := dc.WaitContext(ctx)
		if waitErr != nil {
			return apperrors.Queue(waitErr, "publish confirmation not received")
		}
		if !acked {
			return apperrors.Queue(errors.New("broker nacked message"), "failed to publish job")
		}
	}
	q.logger.DebugContext(ctx, "job published", "job_id", job.JobID)
	return nil
}

// ApproximateDepth returns the number of ready messages reported by a
// passive queue declare. The declare runs on its own short-lived channel and
// never holds the publish channel; the call returns when ctx is done even if
// the broker has not answered. Only one read is in flight at a time.
func (q *Queue) ApproximateDepth(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !q.inspecting.CompareAndSwap(false, true) {
		return 0, apperrors.Queue(errDepthReadInFlight, "failed to inspect queue")
	}

	type result struct {
		depth int64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer q.inspecting.Store(false)
		n, err := q.inspect()
		done <- result{depth: n, err: err}
	}()

	select {
	case r := <-done:
		return r.depth, r.err
	case <-ctx.Done():
		q.logger.WarnContext(ctx, "queue depth read abandoned", "error", ctx.Err())
		return 0, apperrors.Queue(ctx.Err(), "failed to inspect queue")
	}
}

// inspect opens a channel for a single passive declare. A failed passive
// declare closes the channel on the broker side, so it is never reused.
func (q *Queue) inspect() (int64, error) {
	ch, err := q.open()
	if err != nil {
		return 0, apperrors.Queue(fmt.Errorf("open channel: %w", err), "rabbitmq unavailable")
	}
	defer func() { _ = ch.Close() }()

	info, err := ch.QueueDeclarePassive(q.opts.Queue, true, false, false, false, nil)
	if err != nil {
		return 0, apperrors.Queue(err, "failed to inspect queue")
	}
	return int64(info.Messages), nil
}

// Close closes the channel and the underlying connection.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var errs []error
	if q.ch != nil {
		if err := q.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		q.ch = nil
	}
	if q.closer != nil {
		if err := q.closer(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ core.JobQueue = (*Queue)(nil)
