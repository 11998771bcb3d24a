package models

import "time"

// TrainingJobStatus represents the status reported by the training service
type TrainingJobStatus string

const (
	TrainingInProgress TrainingJobStatus = "in_progress"
	TrainingCompleted  TrainingJobStatus = "completed"
	TrainingFailed     TrainingJobStatus = "failed"
	TrainingStopped    TrainingJobStatus = "stopped"
)

// TrainingJobSpec describes a managed training job submission
type TrainingJobSpec struct {
	Name            string
	Image           string // training container image
	EntryScript     string
	Hyperparameters map[string]string
	Compute         ComputeProfile
	OutputPath      string // artifact destination, e.g. s3://bucket/prefix
	MaxRuntime      time.Duration
	// WarmPoolRetention keeps the job's compute idle after completion so a
	// successive job of the same shape skips the cold start. Zero disables it.
	WarmPoolRetention time.Duration
}

// TrainingJob is a submitted training job
type TrainingJob struct {
	Name          string
	Spec          TrainingJobSpec
	Status        TrainingJobStatus
	FailureReason string
	SubmittedAt   time.Time
}
