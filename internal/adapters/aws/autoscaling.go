package awsx

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"

	"github.com/target/detectq/internal/core"
	apperrors "github.com/target/detectq/internal/errors"
)

// AutoScalingFleet implements core.FleetSizeSource using Auto Scaling groups.
type AutoScalingFleet struct {
	client AutoScalingAPI
}

// NewAutoScalingFleet returns a fleet size source.
func NewAutoScalingFleet(client AutoScalingAPI) (*AutoScalingFleet, error) {
	if client == nil {
		return nil, errors.New("autoscaling client is required")
	}
	return &AutoScalingFleet{client: client}, nil
}

// DesiredSize returns the group's desired capacity. A group that does not
// exist yields a fleet_not_found error; a group with capacity zero is valid.
func (f *AutoScalingFleet) DesiredSize(ctx context.Context, fleet string) (int64, error) {
	out, err := f.client.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{fleet},
	})
	if err != nil {
		return 0, wrapAPIError("describe auto scaling groups", err)
	}
	for _, g := range out.AutoScalingGroups {
		if aws.ToString(g.AutoScalingGroupName) == fleet {
			return int64(aws.ToInt32(g.DesiredCapacity)), nil
		}
	}
	return 0, apperrors.FleetNotFound(fleet)
}

var _ core.FleetSizeSource = (*AutoScalingFleet)(nil)
