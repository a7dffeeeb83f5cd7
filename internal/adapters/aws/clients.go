// Package awsx adapts AWS services to the core ports: S3 for payloads, SQS
// for jobs, DynamoDB for results, Auto Scaling for fleet size and CloudWatch
// for the backlog metric.
package awsx

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(
		ctx context.Context,
		in *sqs.GetQueueAttributesInput,
		optFns ...func(*sqs.Options),
	) (*sqs.GetQueueAttributesOutput, error)
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// DynamoDBAPI is the subset of the DynamoDB client used here.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AutoScalingAPI is the subset of the Auto Scaling client used here.
type AutoScalingAPI interface {
	DescribeAutoScalingGroups(
		ctx context.Context,
		in *autoscaling.DescribeAutoScalingGroupsInput,
		optFns ...func(*autoscaling.Options),
	) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	PutMetricData(
		ctx context.Context,
		in *cloudwatch.PutMetricDataInput,
		optFns ...func(*cloudwatch.Options),
	) (*cloudwatch.PutMetricDataOutput, error)
}

// ClientOptions tweaks client construction.
type ClientOptions struct {
	// EndpointURL points every client at an alternate endpoint (LocalStack, MinIO).
	EndpointURL    string
	S3UsePathStyle bool
}

// Clients bundles the concrete SDK clients built from one aws.Config.
type Clients struct {
	S3          *s3.Client
	SQS         *sqs.Client
	DynamoDB    *dynamodb.Client
	AutoScaling *autoscaling.Client
	CloudWatch  *cloudwatch.Client
}

// NewClients builds every client from cfg.
func NewClients(cfg aws.Config, opts ClientOptions) Clients {
	var endpoint *string
	if opts.EndpointURL != "" {
		endpoint = aws.String(opts.EndpointURL)
	}
	return Clients{
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = opts.S3UsePathStyle
		}),
		SQS:         sqs.NewFromConfig(cfg, func(o *sqs.Options) { o.BaseEndpoint = endpoint }),
		DynamoDB:    dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) { o.BaseEndpoint = endpoint }),
		AutoScaling: autoscaling.NewFromConfig(cfg, func(o *autoscaling.Options) { o.BaseEndpoint = endpoint }),
		CloudWatch:  cloudwatch.NewFromConfig(cfg, func(o *cloudwatch.Options) { o.BaseEndpoint = endpoint }),
	}
}

// wrapAPIError prefixes err with op and, when available, the service error code.
func wrapAPIError(op string, err error) error {
	if code := APIErrorCode(err); code != "" {
		return fmt.Errorf("%s (%s): %w", op, code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// APIErrorCode returns the AWS error code carried by err, or "".
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
