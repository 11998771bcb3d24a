package aws

import (
	"context"

	"variant-orchestrator/core/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

// CreateTrainingJob submits a managed training job. A non-zero warm-pool
// retention keeps the provisioned cluster idle after the job so the next
// job of the same shape starts without a cold boot.
func (c *Client) CreateTrainingJob(ctx context.Context, spec models.TrainingJobSpec) error {
	hyperparameters := make(map[string]string, len(spec.Hyperparameters)+1)
	for k, v := range spec.Hyperparameters {
		hyperparameters[k] = v
	}
	if spec.EntryScript != "" {
		hyperparameters["sagemaker_program"] = spec.EntryScript
	}

	resourceConfig := &types.ResourceConfig{
		InstanceType:   types.TrainingInstanceType(spec.Compute.InstanceType),
		InstanceCount:  aws.Int32(int32(spec.Compute.InstanceCount)),
		VolumeSizeInGB: aws.Int32(30),
	}
	if spec.WarmPoolRetention > 0 {
		resourceConfig.KeepAlivePeriodInSeconds = aws.Int32(int32(spec.WarmPoolRetention.Seconds()))
	}

	maxRuntime := int32(spec.MaxRuntime.Seconds())
	if maxRuntime <= 0 {
		maxRuntime = 3600
	}

	_, err := c.sm.CreateTrainingJob(ctx, &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(spec.Name),
		RoleArn:         aws.String(c.roleARN),
		AlgorithmSpecification: &types.AlgorithmSpecification{
			TrainingImage:     aws.String(spec.Image),
			TrainingInputMode: types.TrainingInputModeFile,
		},
		HyperParameters: hyperparameters,
		ResourceConfig:  resourceConfig,
		OutputDataConfig: &types.OutputDataConfig{
			S3OutputPath: aws.String(spec.OutputPath),
		},
		StoppingCondition: &types.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(maxRuntime),
		},
	})
	return err
}

// DescribeTrainingJob reads a training job's status and failure reason
func (c *Client) DescribeTrainingJob(ctx context.Context, name string) (models.TrainingJobStatus, string, error) {
	out, err := c.sm.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(name),
	})
	if err != nil {
		return "", "", err
	}

	reason := ""
	if out.FailureReason != nil {
		reason = *out.FailureReason
	}

	return mapTrainingStatus(out.TrainingJobStatus), reason, nil
}

func mapTrainingStatus(status types.TrainingJobStatus) models.TrainingJobStatus {
	switch status {
	case types.TrainingJobStatusCompleted:
		return models.TrainingCompleted
	case types.TrainingJobStatusFailed:
		return models.TrainingFailed
	case types.TrainingJobStatusStopped, types.TrainingJobStatusStopping:
		return models.TrainingStopped
	default:
		return models.TrainingInProgress
	}
}
