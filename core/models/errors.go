package models

import (
	"fmt"
	"time"
)

// Configuration errors: fail fast, never retried.

// DuplicateVariantError indicates a variant ID that is already registered
type DuplicateVariantError struct {
	VariantID string
}

func (e *DuplicateVariantError) Error() string {
	return fmt.Sprintf("variant %q is already registered", e.VariantID)
}

// InvalidWeightError indicates a traffic weight outside the allowed range
type InvalidWeightError struct {
	VariantID string
	Weight    float64
}

func (e *InvalidWeightError) Error() string {
	if e.VariantID == "" {
		return fmt.Sprintf("invalid combined traffic weight %v", e.Weight)
	}
	return fmt.Sprintf("invalid traffic weight %v for variant %q", e.Weight, e.VariantID)
}

// EmptyVariantSetError indicates an endpoint creation with no variants
type EmptyVariantSetError struct {
	EndpointID string
}

func (e *EmptyVariantSetError) Error() string {
	return fmt.Sprintf("endpoint %q: no variants given", e.EndpointID)
}

// UnknownVariantError indicates a variant ID not hosted on the endpoint
type UnknownVariantError struct {
	EndpointID string
	VariantID  string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("endpoint %q has no variant %q", e.EndpointID, e.VariantID)
}

// EmptyBatchError indicates an evaluation over zero samples
type EmptyBatchError struct {
	EndpointID string
	VariantID  string
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("empty evaluation batch for variant %q on endpoint %q", e.VariantID, e.EndpointID)
}

// Control-plane errors: surfaced immediately, no local retry.

// ProvisioningError indicates the hosting service rejected or failed an
// endpoint creation
type ProvisioningError struct {
	EndpointID string
	Status     EndpointStatus
	Cause      error
}

func (e *ProvisioningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("endpoint %q provisioning failed: %v", e.EndpointID, e.Cause)
	}
	return fmt.Sprintf("endpoint %q provisioning failed in status %q", e.EndpointID, e.Status)
}

func (e *ProvisioningError) Unwrap() error { return e.Cause }

// UpdateRejectedError indicates the hosting service rejected a weight update
type UpdateRejectedError struct {
	EndpointID string
	Weights    map[string]float64
	Cause      error
}

func (e *UpdateRejectedError) Error() string {
	return fmt.Sprintf("endpoint %q rejected weight update %v: %v", e.EndpointID, e.Weights, e.Cause)
}

func (e *UpdateRejectedError) Unwrap() error { return e.Cause }

// Timeout errors: carry the last-observed state so the caller can decide
// to retry, revert, or abort.

// ProvisioningTimeoutError indicates an endpoint did not reach service
// within the polling budget
type ProvisioningTimeoutError struct {
	EndpointID string
	LastStatus EndpointStatus
	Waited     time.Duration
}

func (e *ProvisioningTimeoutError) Error() string {
	return fmt.Sprintf("endpoint %q not in service after %v (last status %q)", e.EndpointID, e.Waited, e.LastStatus)
}

// RolloutTimeoutError indicates a weight shift did not converge to its
// target within the polling budget. The endpoint keeps whatever weights
// were last observed; nothing is rolled back automatically.
type RolloutTimeoutError struct {
	EndpointID   string
	Target       map[string]float64
	LastObserved map[string]float64
	Waited       time.Duration
}

func (e *RolloutTimeoutError) Error() string {
	return fmt.Sprintf("endpoint %q weights did not reach %v after %v (last observed %v)",
		e.EndpointID, e.Target, e.Waited, e.LastObserved)
}

// RolloutStepError indicates a progressive rollout stopped at a step.
// Step is 1-based; earlier steps remain applied.
type RolloutStepError struct {
	EndpointID string
	Step       int
	Err        error
}

func (e *RolloutStepError) Error() string {
	return fmt.Sprintf("endpoint %q rollout failed at step %d: %v", e.EndpointID, e.Step, e.Err)
}

func (e *RolloutStepError) Unwrap() error { return e.Err }

// TrainingFailedError indicates a training job finished unsuccessfully
type TrainingFailedError struct {
	JobName string
	Status  TrainingJobStatus
	Reason  string
}

func (e *TrainingFailedError) Error() string {
	return fmt.Sprintf("training job %q ended %q: %s", e.JobName, e.Status, e.Reason)
}

// TrainingTimeoutError indicates a training job did not finish within the
// polling budget
type TrainingTimeoutError struct {
	JobName    string
	LastStatus TrainingJobStatus
	Waited     time.Duration
}

func (e *TrainingTimeoutError) Error() string {
	return fmt.Sprintf("training job %q not finished after %v (last status %q)", e.JobName, e.Waited, e.LastStatus)
}
