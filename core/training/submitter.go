package training

import (
	"context"
	"fmt"
	"log"
	"time"

	"variant-orchestrator/core/models"
)

// TrainingService is the remote managed training execution engine
type TrainingService interface {
	CreateTrainingJob(ctx context.Context, spec models.TrainingJobSpec) error
	DescribeTrainingJob(ctx context.Context, name string) (models.TrainingJobStatus, string, error)
}

// Submitter submits training jobs to the managed training service
type Submitter struct {
	service TrainingService
}

// NewSubmitter creates a new training submitter
func NewSubmitter(service TrainingService) *Submitter {
	return &Submitter{service: service}
}

// Submit submits a training job. A non-zero WarmPoolRetention keeps the
// job's compute idle after completion so the next job of the same shape
// skips the cold start.
func (s *Submitter) Submit(ctx context.Context, spec models.TrainingJobSpec) (*models.TrainingJob, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("training job name is required")
	}
	if spec.Image == "" {
		return nil, fmt.Errorf("training image is required")
	}
	if spec.Compute.InstanceType == "" || spec.Compute.InstanceCount <= 0 {
		return nil, fmt.Errorf("training job %q: invalid compute profile %+v", spec.Name, spec.Compute)
	}
	if spec.WarmPoolRetention < 0 {
		return nil, fmt.Errorf("training job %q: negative warm pool retention", spec.Name)
	}

	if err := s.service.CreateTrainingJob(ctx, spec); err != nil {
		return nil, fmt.Errorf("failed to submit training job %q: %w", spec.Name, err)
	}

	if spec.WarmPoolRetention > 0 {
		log.Printf("Training job %s submitted with %v warm pool retention", spec.Name, spec.WarmPoolRetention)
	} else {
		log.Printf("Training job %s submitted", spec.Name)
	}

	return &models.TrainingJob{
		Name:        spec.Name,
		Spec:        spec,
		Status:      models.TrainingInProgress,
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitCompletion polls the training service until the job finishes or the
// budget runs out
func (s *Submitter) AwaitCompletion(ctx context.Context, job *models.TrainingJob, pollInterval, maxWait time.Duration) error {
	start := time.Now()

	for {
		status, reason, err := s.service.DescribeTrainingJob(ctx, job.Name)
		if err != nil {
			return fmt.Errorf("failed to describe training job %q: %w", job.Name, err)
		}

		job.Status = status
		job.FailureReason = reason

		switch status {
		case models.TrainingCompleted:
			log.Printf("Training job %s completed after %v", job.Name, time.Since(start).Round(time.Second))
			return nil
		case models.TrainingFailed, models.TrainingStopped:
			return &models.TrainingFailedError{JobName: job.Name, Status: status, Reason: reason}
		}

		if time.Since(start)+pollInterval > maxWait {
			return &models.TrainingTimeoutError{JobName: job.Name, LastStatus: status, Waited: time.Since(start)}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
