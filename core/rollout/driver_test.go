package rollout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/models"
)

type invokeOutcome struct {
	payload []byte
	err     error
}

// fakeHosting scripts the remote control plane for driver tests.
type fakeHosting struct {
	invokeOutcomes []invokeOutcome // consumed one per Invoke
	invokeCalls    int

	describeWeights []map[string]float64 // consumed one per Describe; last repeats
	status          models.EndpointStatus

	updates    []map[string]float64
	updateErrs []error // consumed one per UpdateWeights; nil entries succeed
}

func (f *fakeHosting) CreateEndpoint(context.Context, string, []models.Variant) error { return nil }

func (f *fakeHosting) DescribeEndpoint(context.Context, string) (models.EndpointStatus, map[string]float64, error) {
	status := f.status
	if status == "" {
		status = models.EndpointInService
	}
	var weights map[string]float64
	if len(f.describeWeights) > 0 {
		weights = f.describeWeights[0]
		if len(f.describeWeights) > 1 {
			f.describeWeights = f.describeWeights[1:]
		}
	}
	return status, weights, nil
}

func (f *fakeHosting) UpdateWeights(_ context.Context, _ string, weights map[string]float64) error {
	var err error
	if len(f.updateErrs) > 0 {
		err = f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
	}
	if err != nil {
		return err
	}
	f.updates = append(f.updates, weights)
	f.describeWeights = []map[string]float64{weights}
	return nil
}

func (f *fakeHosting) Invoke(context.Context, string, models.InvocationRequest) (*models.InvocationResult, error) {
	if f.invokeCalls >= len(f.invokeOutcomes) {
		return nil, fmt.Errorf("unexpected invocation %d", f.invokeCalls)
	}
	outcome := f.invokeOutcomes[f.invokeCalls]
	f.invokeCalls++
	if outcome.err != nil {
		return nil, outcome.err
	}
	return &models.InvocationResult{VariantID: "variant-a", Payload: outcome.payload, Timestamp: time.Now()}, nil
}

func (f *fakeHosting) DeleteEndpoint(context.Context, string) error { return nil }

type capturingEvaluationStore struct {
	saved []*models.Evaluation
}

func (s *capturingEvaluationStore) SaveEvaluation(_ context.Context, eval *models.Evaluation) error {
	s.saved = append(s.saved, eval)
	return nil
}

type capturingEventStore struct {
	events []*models.RolloutEvent
}

func (s *capturingEventStore) SaveRolloutEvent(_ context.Context, event *models.RolloutEvent) error {
	s.events = append(s.events, event)
	return nil
}

func testEndpoint() *models.Endpoint {
	compute := models.ComputeProfile{InstanceType: "ml.m5.xlarge", InstanceCount: 1}
	return &models.Endpoint{
		ID:     "churn-ab",
		Status: models.EndpointInService,
		Variants: []models.Variant{
			{ID: "variant-a", ModelRef: "model-a", Compute: compute, Weight: 1},
			{ID: "variant-b", ModelRef: "model-b", Compute: compute, Weight: 1},
		},
	}
}

// digitLabel maps a JSON-encoded class index to its label, the way a
// per-model vocabulary would.
func digitLabel(payload []byte) (string, error) {
	var idx int
	if err := json.Unmarshal(payload, &idx); err != nil {
		return "", err
	}
	labels := []string{"cat", "dog", "bird"}
	if idx < 0 || idx >= len(labels) {
		return "", fmt.Errorf("class index %d out of range", idx)
	}
	return labels[idx], nil
}

func newTestDriver(hosting endpoint.HostingService, evals EvaluationStore, events EventStore) *Driver {
	ctrl := endpoint.NewController(hosting, endpoint.Config{
		PollInterval:    time.Millisecond,
		MaxPollInterval: time.Millisecond,
		MaxWait:         100 * time.Millisecond,
	})
	return NewDriver(ctrl, evals, events)
}

func samplesWithLabels(labels ...string) []models.Sample {
	samples := make([]models.Sample, len(labels))
	for i, l := range labels {
		samples[i] = models.Sample{
			Input:         []byte(fmt.Sprintf(`{"sample":%d}`, i)),
			ContentType:   "application/json",
			ExpectedLabel: l,
		}
	}
	return samples
}

func TestEvaluateVariantAccuracy(t *testing.T) {
	hosting := &fakeHosting{
		invokeOutcomes: []invokeOutcome{
			{payload: []byte(`0`)}, // cat
			{payload: []byte(`1`)}, // dog
			{payload: []byte(`1`)}, // dog, expected cat
			{payload: []byte(`2`)}, // bird
		},
	}
	d := newTestDriver(hosting, nil, nil)

	eval, err := d.EvaluateVariant(context.Background(), testEndpoint(), "variant-a",
		samplesWithLabels("cat", "dog", "cat", "bird"), digitLabel)
	if err != nil {
		t.Fatalf("EvaluateVariant error = %v", err)
	}
	if eval.Correct != 3 || eval.SampleCount != 4 {
		t.Fatalf("Correct/SampleCount = %d/%d, want 3/4", eval.Correct, eval.SampleCount)
	}
	if eval.Accuracy != 0.75 {
		t.Fatalf("Accuracy = %v, want 0.75", eval.Accuracy)
	}
	if eval.ErrorCount != 0 {
		t.Fatalf("ErrorCount = %d, want 0", eval.ErrorCount)
	}
	if len(eval.Records) != 4 {
		t.Fatalf("Records = %d, want 4", len(eval.Records))
	}
}

func TestEvaluateVariantEmptyBatch(t *testing.T) {
	d := newTestDriver(&fakeHosting{}, nil, nil)

	_, err := d.EvaluateVariant(context.Background(), testEndpoint(), "variant-a", nil, digitLabel)
	var empty *models.EmptyBatchError
	if !errors.As(err, &empty) {
		t.Fatalf("EvaluateVariant error = %v, want EmptyBatchError", err)
	}
}

func TestEvaluateVariantUnknownVariant(t *testing.T) {
	d := newTestDriver(&fakeHosting{}, nil, nil)

	_, err := d.EvaluateVariant(context.Background(), testEndpoint(), "variant-z",
		samplesWithLabels("cat"), digitLabel)
	var unknown *models.UnknownVariantError
	if !errors.As(err, &unknown) {
		t.Fatalf("EvaluateVariant error = %v, want UnknownVariantError", err)
	}
}

func TestEvaluateVariantTransportFailureTolerated(t *testing.T) {
	hosting := &fakeHosting{
		invokeOutcomes: []invokeOutcome{
			{payload: []byte(`0`)},
			{err: errors.New("connection reset")},
			{payload: []byte(`2`)},
		},
	}
	store := &capturingEvaluationStore{}
	d := newTestDriver(hosting, store, nil)

	eval, err := d.EvaluateVariant(context.Background(), testEndpoint(), "variant-a",
		samplesWithLabels("cat", "dog", "bird"), digitLabel)
	if err != nil {
		t.Fatalf("EvaluateVariant error = %v", err)
	}
	if hosting.invokeCalls != 3 {
		t.Fatalf("batch aborted after failure: %d invocations, want 3", hosting.invokeCalls)
	}
	if eval.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", eval.ErrorCount)
	}
	if eval.Correct != 2 || eval.Accuracy != float64(2)/float64(3) {
		t.Fatalf("Correct = %d, Accuracy = %v", eval.Correct, eval.Accuracy)
	}
	if eval.Records[1].InvokeError == "" {
		t.Fatalf("failed sample record has no InvokeError")
	}
	if len(store.saved) != 1 {
		t.Fatalf("evaluation not persisted")
	}
}

func TestEvaluateVariantUnmappablePrediction(t *testing.T) {
	hosting := &fakeHosting{
		invokeOutcomes: []invokeOutcome{
			{payload: []byte(`99`)}, // out of vocabulary
			{payload: []byte(`0`)},
		},
	}
	d := newTestDriver(hosting, nil, nil)

	eval, err := d.EvaluateVariant(context.Background(), testEndpoint(), "variant-a",
		samplesWithLabels("cat", "cat"), digitLabel)
	if err != nil {
		t.Fatalf("EvaluateVariant error = %v", err)
	}
	// Unusable output is model wrongness, not a transport error.
	if eval.ErrorCount != 0 {
		t.Fatalf("ErrorCount = %d, want 0", eval.ErrorCount)
	}
	if eval.Correct != 1 || eval.Accuracy != 0.5 {
		t.Fatalf("Correct = %d, Accuracy = %v, want 1 and 0.5", eval.Correct, eval.Accuracy)
	}
}

func TestShiftTrafficConverges(t *testing.T) {
	hosting := &fakeHosting{}
	d := newTestDriver(hosting, nil, nil)

	ep := testEndpoint()
	target := map[string]float64{"variant-a": 75, "variant-b": 25}
	if err := d.ShiftTraffic(context.Background(), ep, target, time.Millisecond, 50*time.Millisecond); err != nil {
		t.Fatalf("ShiftTraffic error = %v", err)
	}
	if len(hosting.updates) != 1 {
		t.Fatalf("UpdateWeights called %d times, want 1", len(hosting.updates))
	}
}

func TestShiftTrafficTimeout(t *testing.T) {
	stale := map[string]float64{"variant-a": 50, "variant-b": 50}
	hosting := &fakeHosting{}
	d := newTestDriver(hosting, nil, nil)

	ep := testEndpoint()
	target := map[string]float64{"variant-a": 75, "variant-b": 25}

	// The service accepts the update but its observed weights never move.
	if err := d.controller.SetWeights(context.Background(), ep, target); err != nil {
		t.Fatalf("SetWeights error = %v", err)
	}
	hosting.describeWeights = []map[string]float64{stale}

	start := time.Now()
	var timeout *models.RolloutTimeoutError
	err := d.pollConvergence(context.Background(), ep, target, time.Millisecond, 20*time.Millisecond, start)
	if !errors.As(err, &timeout) {
		t.Fatalf("poll error = %v, want RolloutTimeoutError", err)
	}
	if timeout.LastObserved["variant-a"] != 50 {
		t.Fatalf("LastObserved = %v, want the stale weights", timeout.LastObserved)
	}
}

func TestProgressiveRollout(t *testing.T) {
	hosting := &fakeHosting{}
	events := &capturingEventStore{}
	d := newTestDriver(hosting, nil, events)

	ep := testEndpoint()
	steps := []models.RolloutStep{
		{Weights: map[string]float64{"variant-a": 25, "variant-b": 75}},
		{Weights: map[string]float64{"variant-a": 0, "variant-b": 100}},
	}
	if err := d.ProgressiveRollout(context.Background(), ep, steps, 0, time.Millisecond, 50*time.Millisecond); err != nil {
		t.Fatalf("ProgressiveRollout error = %v", err)
	}
	if len(hosting.updates) != 2 {
		t.Fatalf("UpdateWeights called %d times, want 2", len(hosting.updates))
	}
	if len(events.events) != 2 || !events.events[0].Succeeded || !events.events[1].Succeeded {
		t.Fatalf("rollout events = %+v", events.events)
	}
}

func TestProgressiveRolloutStopsAtFailingStep(t *testing.T) {
	hosting := &fakeHosting{
		updateErrs: []error{nil, errors.New("endpoint busy")},
	}
	events := &capturingEventStore{}
	d := newTestDriver(hosting, nil, events)

	ep := testEndpoint()
	steps := []models.RolloutStep{
		{Weights: map[string]float64{"variant-a": 25, "variant-b": 75}},
		{Weights: map[string]float64{"variant-a": 0, "variant-b": 100}},
	}
	err := d.ProgressiveRollout(context.Background(), ep, steps, 0, time.Millisecond, 50*time.Millisecond)

	var stepErr *models.RolloutStepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("ProgressiveRollout error = %v, want RolloutStepError", err)
	}
	if stepErr.Step != 2 {
		t.Fatalf("RolloutStepError.Step = %d, want 2", stepErr.Step)
	}
	var rejected *models.UpdateRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("RolloutStepError does not wrap the rejection: %v", err)
	}

	// Step 1's split stays applied.
	if len(hosting.updates) != 1 || hosting.updates[0]["variant-b"] != 75 {
		t.Fatalf("applied updates = %v, want only step 1", hosting.updates)
	}
	if len(events.events) != 2 || events.events[1].Succeeded {
		t.Fatalf("rollout events = %+v, want step 2 recorded as failed", events.events)
	}
}

func TestWeightsEqualExactMatch(t *testing.T) {
	a := map[string]float64{"x": 1, "y": 2}
	if !weightsEqual(a, map[string]float64{"y": 2, "x": 1}) {
		t.Fatalf("weightsEqual = false for equal maps")
	}
	if weightsEqual(a, map[string]float64{"x": 1}) {
		t.Fatalf("weightsEqual = true for missing key")
	}
	if weightsEqual(a, map[string]float64{"x": 1, "y": 2.0001}) {
		t.Fatalf("weightsEqual = true for differing value")
	}
}
