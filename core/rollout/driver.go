package rollout

import (
	"context"
	"log"
	"time"

	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/models"

	"github.com/google/uuid"
)

// LabelMapping converts a raw inference response into a canonical label.
// Label vocabularies differ per model, so the mapping is always supplied by
// the caller, never hard-coded.
type LabelMapping func(payload []byte) (string, error)

// EvaluationStore persists finished evaluation batches
type EvaluationStore interface {
	SaveEvaluation(ctx context.Context, eval *models.Evaluation) error
}

// EventStore persists the outcome of each applied rollout step
type EventStore interface {
	SaveRolloutEvent(ctx context.Context, event *models.RolloutEvent) error
}

// Driver evaluates variants and shifts traffic between them. It owns the
// evaluation records and executes whatever target weights it is given; it
// never decides a winner on its own.
type Driver struct {
	controller  *endpoint.Controller
	evaluations EvaluationStore // optional
	events      EventStore      // optional
}

// NewDriver creates a rollout driver. Both stores may be nil, in which case
// results are only returned, not persisted.
func NewDriver(controller *endpoint.Controller, evaluations EvaluationStore, events EventStore) *Driver {
	return &Driver{
		controller:  controller,
		evaluations: evaluations,
		events:      events,
	}
}

// EvaluateVariant runs every sample through the endpoint pinned to one
// variant and scores the predictions against the expected labels. A failed
// invocation counts as incorrect and increments ErrorCount, but does not
// abort the batch.
func (d *Driver) EvaluateVariant(ctx context.Context, ep *models.Endpoint, variantID string, samples []models.Sample, mapLabel LabelMapping) (*models.Evaluation, error) {
	if len(samples) == 0 {
		return nil, &models.EmptyBatchError{EndpointID: ep.ID, VariantID: variantID}
	}
	if !ep.HasVariant(variantID) {
		return nil, &models.UnknownVariantError{EndpointID: ep.ID, VariantID: variantID}
	}

	eval := &models.Evaluation{
		ID:          uuid.New().String(),
		EndpointID:  ep.ID,
		VariantID:   variantID,
		SampleCount: len(samples),
		StartedAt:   time.Now(),
	}

	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record := models.EvaluationRecord{
			VariantID: variantID,
			Expected:  sample.ExpectedLabel,
			At:        time.Now(),
		}

		result, err := d.controller.Invoke(ctx, ep, models.InvocationRequest{
			Payload:       sample.Input,
			ContentType:   sample.ContentType,
			TargetVariant: variantID,
		})
		if err != nil {
			// Transport failure: incorrect, tracked separately from
			// model wrongness.
			record.InvokeError = err.Error()
			eval.ErrorCount++
			eval.Records = append(eval.Records, record)
			continue
		}

		predicted, err := mapLabel(result.Payload)
		if err != nil {
			// The model answered but its output was unusable; that is
			// wrongness, not a transport failure.
			log.Printf("Variant %s: unmappable prediction: %v", variantID, err)
			eval.Records = append(eval.Records, record)
			continue
		}

		record.Predicted = predicted
		record.Correct = predicted == sample.ExpectedLabel
		if record.Correct {
			eval.Correct++
		}
		eval.Records = append(eval.Records, record)
	}

	eval.Accuracy = float64(eval.Correct) / float64(eval.SampleCount)
	eval.FinishedAt = time.Now()

	if d.evaluations != nil {
		if err := d.evaluations.SaveEvaluation(ctx, eval); err != nil {
			log.Printf("Failed to persist evaluation %s: %v", eval.ID, err)
		}
	}

	log.Printf("Variant %s on endpoint %s: accuracy %.3f (%d/%d correct, %d transport errors)",
		variantID, ep.ID, eval.Accuracy, eval.Correct, eval.SampleCount, eval.ErrorCount)

	return eval, nil
}

// ShiftTraffic applies a target weight split and polls the live weights
// until they match it exactly. On timeout the endpoint keeps its
// last-observed weights; nothing is rolled back.
func (d *Driver) ShiftTraffic(ctx context.Context, ep *models.Endpoint, target map[string]float64, pollInterval, maxWait time.Duration) error {
	if err := d.controller.SetWeights(ctx, ep, target); err != nil {
		return err
	}
	return d.pollConvergence(ctx, ep, target, pollInterval, maxWait, time.Now())
}

func (d *Driver) pollConvergence(ctx context.Context, ep *models.Endpoint, target map[string]float64, pollInterval, maxWait time.Duration, start time.Time) error {
	var lastObserved map[string]float64

	for {
		observed, err := d.controller.CurrentWeights(ctx, ep)
		if err != nil {
			return err
		}
		lastObserved = observed

		if weightsEqual(observed, target) && ep.Status == models.EndpointInService {
			log.Printf("Endpoint %s weights converged to %v after %v",
				ep.ID, target, time.Since(start).Round(time.Millisecond))
			return nil
		}

		if time.Since(start)+pollInterval > maxWait {
			return &models.RolloutTimeoutError{
				EndpointID:   ep.ID,
				Target:       target,
				LastObserved: lastObserved,
				Waited:       time.Since(start),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ProgressiveRollout applies each step's weight split in order, pausing
// between steps, to gradually promote a winning variant. A failure at step
// k stops the sequence; earlier steps stay applied and the error carries k.
func (d *Driver) ProgressiveRollout(ctx context.Context, ep *models.Endpoint, steps []models.RolloutStep, pauseBetween, pollInterval, maxWait time.Duration) error {
	for i, step := range steps {
		stepNo := i + 1

		err := d.ShiftTraffic(ctx, ep, step.Weights, pollInterval, maxWait)
		d.recordStep(ctx, ep.ID, stepNo, step.Weights, err)
		if err != nil {
			return &models.RolloutStepError{EndpointID: ep.ID, Step: stepNo, Err: err}
		}

		log.Printf("Endpoint %s rollout step %d/%d applied: %v", ep.ID, stepNo, len(steps), step.Weights)

		if stepNo < len(steps) && pauseBetween > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pauseBetween):
			}
		}
	}
	return nil
}

func (d *Driver) recordStep(ctx context.Context, endpointID string, step int, weights map[string]float64, stepErr error) {
	if d.events == nil {
		return
	}
	event := &models.RolloutEvent{
		EndpointID: endpointID,
		Step:       step,
		Weights:    weights,
		Succeeded:  stepErr == nil,
		At:         time.Now(),
	}
	if stepErr != nil {
		event.Error = stepErr.Error()
	}
	if err := d.events.SaveRolloutEvent(ctx, event); err != nil {
		log.Printf("Failed to persist rollout event for endpoint %s step %d: %v", endpointID, step, err)
	}
}

// weightsEqual reports an exact match: same key set, same values
func weightsEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || v != w {
			return false
		}
	}
	return true
}
