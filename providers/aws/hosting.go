package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/smithy-go"
)

// CreateEndpoint creates an endpoint config with one production variant per
// registered variant, then the endpoint itself. Each variant's ModelRef
// must name a model already registered with SageMaker.
func (c *Client) CreateEndpoint(ctx context.Context, endpointID string, variants []models.Variant) error {
	productionVariants := make([]types.ProductionVariant, len(variants))
	for i, v := range variants {
		productionVariants[i] = types.ProductionVariant{
			VariantName:          aws.String(v.ID),
			ModelName:            aws.String(v.ModelRef),
			InstanceType:         types.ProductionVariantInstanceType(v.Compute.InstanceType),
			InitialInstanceCount: aws.Int32(int32(v.Compute.InstanceCount)),
			InitialVariantWeight: aws.Float32(float32(v.Weight)),
		}
	}

	configName := endpointConfigName(endpointID)
	_, err := c.sm.CreateEndpointConfig(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(configName),
		ProductionVariants: productionVariants,
	})
	if err != nil {
		return fmt.Errorf("failed to create endpoint config %q: %w", configName, err)
	}

	_, err = c.sm.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(endpointID),
		EndpointConfigName: aws.String(configName),
	})
	if err != nil {
		return fmt.Errorf("failed to create endpoint %q: %w", endpointID, err)
	}

	return nil
}

// DescribeEndpoint reads the endpoint's live status and per-variant weights
func (c *Client) DescribeEndpoint(ctx context.Context, endpointID string) (models.EndpointStatus, map[string]float64, error) {
	out, err := c.sm.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(endpointID),
	})
	if err != nil {
		if isEndpointNotFound(err) {
			return models.EndpointDeleted, nil, nil
		}
		return "", nil, err
	}

	weights := make(map[string]float64, len(out.ProductionVariants))
	for _, v := range out.ProductionVariants {
		if v.VariantName == nil {
			continue
		}
		weight := 0.0
		if v.CurrentWeight != nil {
			weight = float64(*v.CurrentWeight)
		}
		weights[*v.VariantName] = weight
	}

	return mapEndpointStatus(out.EndpointStatus), weights, nil
}

// UpdateWeights issues a single weight update covering every listed variant
func (c *Client) UpdateWeights(ctx context.Context, endpointID string, weights map[string]float64) error {
	desired := make([]types.DesiredWeightAndCapacity, 0, len(weights))
	for variantID, weight := range weights {
		desired = append(desired, types.DesiredWeightAndCapacity{
			VariantName:   aws.String(variantID),
			DesiredWeight: aws.Float32(float32(weight)),
		})
	}

	_, err := c.sm.UpdateEndpointWeightsAndCapacities(ctx, &sagemaker.UpdateEndpointWeightsAndCapacitiesInput{
		EndpointName:                aws.String(endpointID),
		DesiredWeightsAndCapacities: desired,
	})
	return err
}

// Invoke sends one inference request, optionally pinned to a variant
func (c *Client) Invoke(ctx context.Context, endpointID string, req models.InvocationRequest) (*models.InvocationResult, error) {
	input := &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpointID),
		Body:         req.Payload,
		ContentType:  aws.String(req.ContentType),
	}
	if req.TargetVariant != "" {
		input.TargetVariant = aws.String(req.TargetVariant)
	}

	out, err := c.runtime.InvokeEndpoint(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &models.InvocationResult{
		Payload:   out.Body,
		Timestamp: time.Now(),
	}
	if out.InvokedProductionVariant != nil {
		result.VariantID = *out.InvokedProductionVariant
	}
	return result, nil
}

// DeleteEndpoint deletes the endpoint and its config. A missing endpoint
// maps to endpoint.ErrEndpointNotFound so the controller can treat a repeat
// delete as a no-op.
func (c *Client) DeleteEndpoint(ctx context.Context, endpointID string) error {
	_, err := c.sm.DeleteEndpoint(ctx, &sagemaker.DeleteEndpointInput{
		EndpointName: aws.String(endpointID),
	})
	if err != nil {
		if isEndpointNotFound(err) {
			return endpoint.ErrEndpointNotFound
		}
		return err
	}

	_, err = c.sm.DeleteEndpointConfig(ctx, &sagemaker.DeleteEndpointConfigInput{
		EndpointConfigName: aws.String(endpointConfigName(endpointID)),
	})
	if err != nil && !isEndpointNotFound(err) {
		return fmt.Errorf("endpoint %q deleted but its config was not: %w", endpointID, err)
	}
	return nil
}

func endpointConfigName(endpointID string) string {
	return endpointID + "-config"
}

func mapEndpointStatus(status types.EndpointStatus) models.EndpointStatus {
	switch status {
	case types.EndpointStatusCreating:
		return models.EndpointCreating
	case types.EndpointStatusInService:
		return models.EndpointInService
	case types.EndpointStatusUpdating, types.EndpointStatusSystemUpdating, types.EndpointStatusRollingBack:
		return models.EndpointUpdating
	case types.EndpointStatusDeleting:
		return models.EndpointDeleting
	case types.EndpointStatusOutOfService, types.EndpointStatusFailed:
		return models.EndpointFailed
	default:
		return models.EndpointFailed
	}
}

// isEndpointNotFound detects the ValidationException SageMaker returns for
// operations on endpoints it does not know
func isEndpointNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.ErrorCode() != "ValidationException" {
		return false
	}
	return strings.Contains(apiErr.ErrorMessage(), "Could not find")
}
