package awsx

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
)

// CloudWatchSink implements core.MetricsSink with PutMetricData.
type CloudWatchSink struct {
	client           CloudWatchAPI
	defaultNamespace string
}

// NewCloudWatchSink returns a sink. defaultNamespace is used for points that
// carry no namespace of their own.
func NewCloudWatchSink(client CloudWatchAPI, defaultNamespace string) (*CloudWatchSink, error) {
	if client == nil {
		return nil, errors.New("cloudwatch client is required")
	}
	return &CloudWatchSink{client: client, defaultNamespace: defaultNamespace}, nil
}

// Publish sends a single datum.
func (s *CloudWatchSink) Publish(ctx context.Context, point model.MetricPoint) error {
	ns := point.Namespace
	if ns == "" {
		ns = s.defaultNamespace
	}
	if ns == "" || point.Name == "" {
		return errors.New("metric namespace and name are required")
	}

	datum := types.MetricDatum{
		MetricName: aws.String(point.Name),
		Value:      aws.Float64(point.Value),
		Unit:       types.StandardUnit(point.Unit),
	}
	if datum.Unit == "" {
		datum.Unit = types.StandardUnitNone
	}
	if !point.Timestamp.IsZero() {
		datum.Timestamp = aws.Time(point.Timestamp)
	}
	for _, name := range slices.Sorted(maps.Keys(point.Dimensions)) {
		datum.Dimensions = append(datum.Dimensions, types.Dimension{
			Name:  aws.String(name),
			Value: aws.String(point.Dimensions[name]),
		})
	}

	if _, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(ns),
		MetricData: []types.MetricDatum{datum},
	}); err != nil {
		return wrapAPIError("cloudwatch put metric data", err)
	}
	return nil
}

var _ core.MetricsSink = (*CloudWatchSink)(nil)
