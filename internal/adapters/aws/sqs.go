package awsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
)

// SQSQueueOptions configures NewSQSQueue. Either URL or Name must be set.
type SQSQueueOptions struct {
	Client SQSAPI
	URL    string
	Name   string
	Logger *slog.Logger
}

// SQSQueue implements core.JobQueue on a standard SQS queue.
type SQSQueue struct {
	client SQSAPI
	url    string
	logger *slog.Logger
}

// NewSQSQueue returns a queue bound to opts.URL, resolving it from opts.Name
// when no URL is configured.
func NewSQSQueue(ctx context.Context, opts SQSQueueOptions) (*SQSQueue, error) {
	if opts.Client == nil {
		return nil, errors.New("sqs client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	url := opts.URL
	if url == "" {
		if opts.Name == "" {
			return nil, errors.New("queue url or name is required")
		}
		out, err := opts.Client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(opts.Name)})
		if err != nil {
			return nil, wrapAPIError(fmt.Sprintf("resolve queue url for %q", opts.Name), err)
		}
		url = aws.ToString(out.QueueUrl)
		logger.Debug("resolved sqs queue url", "queue", opts.Name, "url", url)
	}

	return &SQSQueue{client: opts.Client, url: url, logger: logger.With("component", "sqs_queue")}, nil
}

// URL returns the queue URL in use.
func (q *SQSQueue) URL() string { return q.url }

// Enqueue sends job as a JSON message body.
func (q *SQSQueue) Enqueue(ctx context.Context, job model.JobDescriptor) error {
	body, err := job.Encode()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job descriptor")
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"job_id": {DataType: aws.String("String"), StringValue: aws.String(job.JobID)},
		},
	})
	if err != nil {
		return apperrors.Queue(wrapAPIError("sqs send message", err), "failed to enqueue job")
	}
	q.logger.DebugContext(ctx, "sqs message sent", "job_id", job.JobID, "message_id", aws.ToString(out.MessageId))
	return nil
}

// ApproximateDepth returns ApproximateNumberOfMessages for the queue.
func (q *SQSQueue) ApproximateDepth(ctx context.Context) (int64, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, apperrors.Queue(wrapAPIError("sqs get queue attributes", err), "failed to read queue depth")
	}
	raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	if !ok {
		return 0, apperrors.Queue(errors.New("attribute missing"), "queue depth not reported")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Queue(err, "queue depth is not a number")
	}
	return n, nil
}

var _ core.JobQueue = (*SQSQueue)(nil)
