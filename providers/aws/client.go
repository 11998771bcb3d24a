package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

// Client bundles the SageMaker control-plane, runtime, telemetry and
// pricing clients
type Client struct {
	sm      *sagemaker.Client
	runtime *sagemakerruntime.Client
	cw      *cloudwatch.Client
	pricing *pricing.Client
	region  string
	roleARN string // execution role attached to training jobs
}

// NewClient creates a new AWS client
func NewClient(ctx context.Context, region, roleARN string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}

	return &Client{
		sm:      sagemaker.NewFromConfig(cfg),
		runtime: sagemakerruntime.NewFromConfig(cfg),
		cw:      cloudwatch.NewFromConfig(cfg),
		// The pricing API is only served from us-east-1
		pricing: pricing.NewFromConfig(cfg, func(o *pricing.Options) {
			o.Region = "us-east-1"
		}),
		region:  region,
		roleARN: roleARN,
	}, nil
}
