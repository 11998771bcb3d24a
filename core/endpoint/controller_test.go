package endpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"variant-orchestrator/core/models"
)

// fakeHosting is an in-memory HostingService for controller tests.
type fakeHosting struct {
	createErr error
	updateErr error
	deleteErr error
	invokeErr error

	statusSeq   []models.EndpointStatus // consumed one per DescribeEndpoint
	weights     map[string]float64
	createCalls int
	updateCalls int
	deleteCalls int
	invokeCalls int
	invokedWith models.InvocationRequest
}

func (f *fakeHosting) CreateEndpoint(_ context.Context, _ string, _ []models.Variant) error {
	f.createCalls++
	return f.createErr
}

func (f *fakeHosting) DescribeEndpoint(_ context.Context, _ string) (models.EndpointStatus, map[string]float64, error) {
	status := models.EndpointInService
	if len(f.statusSeq) > 0 {
		status = f.statusSeq[0]
		if len(f.statusSeq) > 1 {
			f.statusSeq = f.statusSeq[1:]
		}
	}
	return status, f.weights, nil
}

func (f *fakeHosting) UpdateWeights(_ context.Context, _ string, weights map[string]float64) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.weights = weights
	return nil
}

func (f *fakeHosting) Invoke(_ context.Context, _ string, req models.InvocationRequest) (*models.InvocationResult, error) {
	f.invokeCalls++
	f.invokedWith = req
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	variant := req.TargetVariant
	if variant == "" {
		variant = "variant-a"
	}
	return &models.InvocationResult{VariantID: variant, Payload: []byte(`"cat"`)}, nil
}

func (f *fakeHosting) DeleteEndpoint(_ context.Context, _ string) error {
	f.deleteCalls++
	return f.deleteErr
}

func twoVariants() []models.Variant {
	compute := models.ComputeProfile{InstanceType: "ml.m5.xlarge", InstanceCount: 1}
	return []models.Variant{
		{ID: "variant-a", ModelRef: "model-a", Compute: compute, Weight: 1},
		{ID: "variant-b", ModelRef: "model-b", Compute: compute, Weight: 1},
	}
}

func fastConfig() Config {
	return Config{
		PollInterval:    time.Millisecond,
		MaxPollInterval: 4 * time.Millisecond,
		MaxWait:         100 * time.Millisecond,
	}
}

func TestCreateEmptyVariantSet(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	_, err := c.Create(context.Background(), "ep", nil)
	var empty *models.EmptyVariantSetError
	if !errors.As(err, &empty) {
		t.Fatalf("Create error = %v, want EmptyVariantSetError", err)
	}
	if hosting.createCalls != 0 {
		t.Fatalf("CreateEndpoint called %d times on invalid input", hosting.createCalls)
	}
}

func TestCreateZeroTotalWeight(t *testing.T) {
	c := NewController(&fakeHosting{}, fastConfig())

	variants := twoVariants()
	variants[0].Weight = 0
	variants[1].Weight = 0

	_, err := c.Create(context.Background(), "ep", variants)
	var inv *models.InvalidWeightError
	if !errors.As(err, &inv) {
		t.Fatalf("Create error = %v, want InvalidWeightError", err)
	}
}

func TestCreatePropagatesServiceRejection(t *testing.T) {
	cause := errors.New("quota exceeded")
	c := NewController(&fakeHosting{createErr: cause}, fastConfig())

	_, err := c.Create(context.Background(), "ep", twoVariants())
	var prov *models.ProvisioningError
	if !errors.As(err, &prov) {
		t.Fatalf("Create error = %v, want ProvisioningError", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("ProvisioningError does not wrap cause: %v", err)
	}
}

func TestCreateReturnsBeforeInService(t *testing.T) {
	c := NewController(&fakeHosting{}, fastConfig())

	ep, err := c.Create(context.Background(), "ep", twoVariants())
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if ep.Status != models.EndpointCreating {
		t.Fatalf("Create status = %q, want creating", ep.Status)
	}
}

func TestAwaitReady(t *testing.T) {
	hosting := &fakeHosting{
		statusSeq: []models.EndpointStatus{
			models.EndpointCreating,
			models.EndpointCreating,
			models.EndpointInService,
		},
		weights: map[string]float64{"variant-a": 1, "variant-b": 1},
	}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointCreating}
	got, err := c.AwaitReady(context.Background(), ep)
	if err != nil {
		t.Fatalf("AwaitReady error = %v", err)
	}
	if got.Status != models.EndpointInService {
		t.Fatalf("AwaitReady status = %q, want in_service", got.Status)
	}
}

func TestAwaitReadyFailedStatus(t *testing.T) {
	hosting := &fakeHosting{statusSeq: []models.EndpointStatus{models.EndpointFailed}}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants()}
	_, err := c.AwaitReady(context.Background(), ep)
	var prov *models.ProvisioningError
	if !errors.As(err, &prov) {
		t.Fatalf("AwaitReady error = %v, want ProvisioningError", err)
	}
	if prov.Status != models.EndpointFailed {
		t.Fatalf("ProvisioningError.Status = %q", prov.Status)
	}
}

func TestAwaitReadyTimeout(t *testing.T) {
	hosting := &fakeHosting{statusSeq: []models.EndpointStatus{models.EndpointCreating}}
	c := NewController(hosting, Config{
		PollInterval:    5 * time.Millisecond,
		MaxPollInterval: 5 * time.Millisecond,
		MaxWait:         20 * time.Millisecond,
	})

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants()}
	_, err := c.AwaitReady(context.Background(), ep)
	var timeout *models.ProvisioningTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("AwaitReady error = %v, want ProvisioningTimeoutError", err)
	}
	if timeout.LastStatus != models.EndpointCreating {
		t.Fatalf("ProvisioningTimeoutError.LastStatus = %q", timeout.LastStatus)
	}
}

func TestAwaitReadyCancellation(t *testing.T) {
	hosting := &fakeHosting{statusSeq: []models.EndpointStatus{models.EndpointCreating}}
	c := NewController(hosting, Config{
		PollInterval:    time.Hour,
		MaxPollInterval: time.Hour,
		MaxWait:         24 * time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants()}
	start := time.Now()
	_, err := c.AwaitReady(ctx, ep)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitReady error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("AwaitReady did not return promptly on cancellation")
	}
}

func TestInvokePinnedUnknownVariant(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	_, err := c.Invoke(context.Background(), ep, models.InvocationRequest{TargetVariant: "variant-z"})
	var unknown *models.UnknownVariantError
	if !errors.As(err, &unknown) {
		t.Fatalf("Invoke error = %v, want UnknownVariantError", err)
	}
	if hosting.invokeCalls != 0 {
		t.Fatalf("Invoke reached the service for an unknown pin")
	}
}

func TestInvokePinned(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	result, err := c.Invoke(context.Background(), ep, models.InvocationRequest{
		Payload:       []byte(`{"pixels":[]}`),
		ContentType:   "application/json",
		TargetVariant: "variant-b",
	})
	if err != nil {
		t.Fatalf("Invoke error = %v", err)
	}
	if result.VariantID != "variant-b" {
		t.Fatalf("Invoke attributed to %q, want variant-b", result.VariantID)
	}
	if result.Timestamp.IsZero() {
		t.Fatalf("Invoke result has zero timestamp")
	}
	if hosting.invokedWith.TargetVariant != "variant-b" {
		t.Fatalf("pin not forwarded to the service: %+v", hosting.invokedWith)
	}
}

func TestSetWeightsUnknownVariantIssuesNoUpdate(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	err := c.SetWeights(context.Background(), ep, map[string]float64{"variant-a": 50, "variant-z": 50})
	var unknown *models.UnknownVariantError
	if !errors.As(err, &unknown) {
		t.Fatalf("SetWeights error = %v, want UnknownVariantError", err)
	}
	if hosting.updateCalls != 0 {
		t.Fatalf("UpdateWeights called %d times despite validation failure", hosting.updateCalls)
	}
}

func TestSetWeightsPartialZeroAllowed(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	// variant-b keeps its weight of 1, so zeroing variant-a alone still
	// leaves the endpoint serving traffic.
	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	if err := c.SetWeights(context.Background(), ep, map[string]float64{"variant-a": 0}); err != nil {
		t.Fatalf("SetWeights error = %v, want nil for a partial zero", err)
	}
	if hosting.updateCalls != 1 {
		t.Fatalf("UpdateWeights called %d times, want 1", hosting.updateCalls)
	}
}

func TestSetWeightsAllZeroRejected(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	err := c.SetWeights(context.Background(), ep, map[string]float64{"variant-a": 0, "variant-b": 0})
	var inv *models.InvalidWeightError
	if !errors.As(err, &inv) {
		t.Fatalf("SetWeights error = %v, want InvalidWeightError", err)
	}
	if hosting.updateCalls != 0 {
		t.Fatalf("UpdateWeights called %d times despite zero total", hosting.updateCalls)
	}
}

func TestSetWeightsRejected(t *testing.T) {
	cause := errors.New("endpoint busy")
	hosting := &fakeHosting{updateErr: cause}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	err := c.SetWeights(context.Background(), ep, map[string]float64{"variant-a": 75, "variant-b": 25})
	var rejected *models.UpdateRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("SetWeights error = %v, want UpdateRejectedError", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("UpdateRejectedError does not wrap cause: %v", err)
	}
}

func TestSetWeightsTransitionsToUpdating(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	if err := c.SetWeights(context.Background(), ep, map[string]float64{"variant-a": 75, "variant-b": 25}); err != nil {
		t.Fatalf("SetWeights error = %v", err)
	}
	if ep.Status != models.EndpointUpdating {
		t.Fatalf("status after SetWeights = %q, want updating", ep.Status)
	}
}

func TestCurrentWeightsIsLive(t *testing.T) {
	hosting := &fakeHosting{
		statusSeq: []models.EndpointStatus{models.EndpointInService},
		weights:   map[string]float64{"variant-a": 75, "variant-b": 25},
	}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	got, err := c.CurrentWeights(context.Background(), ep)
	if err != nil {
		t.Fatalf("CurrentWeights error = %v", err)
	}
	if got["variant-a"] != 75 || got["variant-b"] != 25 {
		t.Fatalf("CurrentWeights = %v", got)
	}

	// The mirror follows the live read.
	for _, v := range ep.Variants {
		if v.ID == "variant-a" && v.Weight != 75 {
			t.Fatalf("mirror weight for variant-a = %v, want 75", v.Weight)
		}
	}
}

func TestDeleteIdempotent(t *testing.T) {
	hosting := &fakeHosting{}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	if err := c.Delete(context.Background(), ep); err != nil {
		t.Fatalf("first Delete error = %v", err)
	}
	if ep.Status != models.EndpointDeleted {
		t.Fatalf("status after Delete = %q, want deleted", ep.Status)
	}
	if err := c.Delete(context.Background(), ep); err != nil {
		t.Fatalf("second Delete error = %v, want nil", err)
	}
	if hosting.deleteCalls != 1 {
		t.Fatalf("DeleteEndpoint called %d times, want 1", hosting.deleteCalls)
	}
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	hosting := &fakeHosting{deleteErr: ErrEndpointNotFound}
	c := NewController(hosting, fastConfig())

	ep := &models.Endpoint{ID: "ep", Variants: twoVariants(), Status: models.EndpointInService}
	if err := c.Delete(context.Background(), ep); err != nil {
		t.Fatalf("Delete error = %v, want nil for a missing endpoint", err)
	}
	if ep.Status != models.EndpointDeleted {
		t.Fatalf("status after Delete = %q, want deleted", ep.Status)
	}
}
