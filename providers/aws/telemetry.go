package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const sageMakerNamespace = "AWS/SageMaker"

// VariantInvocations returns the number of invocations the hosting service
// attributed to one variant over the window
func (c *Client) VariantInvocations(ctx context.Context, endpointID, variantID string, start, end time.Time) (int64, error) {
	datapoints, err := c.getMetricStatistics(ctx, "Invocations", endpointID, variantID, start, end, types.StatisticSum)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, dp := range datapoints {
		if dp.Sum != nil {
			total += *dp.Sum
		}
	}
	return int64(total), nil
}

// VariantModelLatency returns the average model latency for one variant
// over the window
func (c *Client) VariantModelLatency(ctx context.Context, endpointID, variantID string, start, end time.Time) (time.Duration, error) {
	datapoints, err := c.getMetricStatistics(ctx, "ModelLatency", endpointID, variantID, start, end, types.StatisticAverage)
	if err != nil {
		return 0, err
	}
	if len(datapoints) == 0 {
		return 0, nil
	}

	var sum float64
	var count int
	for _, dp := range datapoints {
		if dp.Average != nil {
			sum += *dp.Average
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}

	// ModelLatency is reported in microseconds
	return time.Duration(sum/float64(count)) * time.Microsecond, nil
}

func (c *Client) getMetricStatistics(ctx context.Context, metricName, endpointID, variantID string, start, end time.Time, stat types.Statistic) ([]types.Datapoint, error) {
	out, err := c.cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(sageMakerNamespace),
		MetricName: aws.String(metricName),
		Dimensions: []types.Dimension{
			{Name: aws.String("EndpointName"), Value: aws.String(endpointID)},
			{Name: aws.String("VariantName"), Value: aws.String(variantID)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(metricPeriod(start, end)),
		Statistics: []types.Statistic{stat},
	})
	if err != nil {
		return nil, err
	}
	return out.Datapoints, nil
}

// metricPeriod returns the window length rounded up to a whole minute;
// CloudWatch rejects periods that are not multiples of 60 seconds
func metricPeriod(start, end time.Time) int32 {
	period := int32(end.Sub(start).Seconds())
	if period <= 0 {
		return 60
	}
	if rem := period % 60; rem != 0 {
		period += 60 - rem
	}
	return period
}
