package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/models"
	"variant-orchestrator/core/registry"
	"variant-orchestrator/core/rollout"
)

func newTestRolloutHandler(hosting endpoint.HostingService, reg *registry.Registry, store *EndpointStore) *RolloutHandler {
	ctrl := endpoint.NewController(hosting, endpoint.Config{
		PollInterval:    time.Millisecond,
		MaxPollInterval: time.Millisecond,
		MaxWait:         time.Second,
	})
	driver := rollout.NewDriver(ctrl, nil, nil)
	return NewRolloutHandler(driver, ctrl, reg, store, nil, nil)
}

func TestStartRolloutReusesRegisteredVariant(t *testing.T) {
	reg := registry.NewRegistry()
	compute := models.ComputeProfile{InstanceType: "ml.m5.xlarge", InstanceCount: 1}
	if _, err := reg.Register("variant-a", "model-a", compute, 50); err != nil {
		t.Fatalf("Register error = %v", err)
	}

	store := NewEndpointStore()
	h := newTestRolloutHandler(&fakeHosting{}, reg, store)

	// The plan re-declares variant-a with a different weight; the existing
	// registration wins.
	body, _ := json.Marshal(map[string]string{"plan_yaml": `
plan:
  endpoint: churn-ab
  variants:
    - id: variant-a
      model: model-a
      instance_type: ml.m5.xlarge
      weight: 70
`})
	req := httptest.NewRequest("POST", "/v1/rollouts", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.StartRollout(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("StartRollout status = %d, body %s", rec.Code, rec.Body.String())
	}

	ep, ok := store.Get("churn-ab")
	if !ok {
		t.Fatalf("endpoint not created")
	}
	if len(ep.Variants) != 1 || ep.Variants[0].Weight != 50 {
		t.Fatalf("endpoint variants = %+v, want the registered weight 50", ep.Variants)
	}
	if v, _ := reg.Get("variant-a"); v.Weight != 50 {
		t.Fatalf("registry weight = %v, want 50 untouched", v.Weight)
	}
}

func TestStartRolloutRejectsBadPlan(t *testing.T) {
	store := NewEndpointStore()
	h := newTestRolloutHandler(&fakeHosting{}, registry.NewRegistry(), store)

	body, _ := json.Marshal(map[string]string{"plan_yaml": `
plan:
  variants:
    - {id: a, model: m, instance_type: t, weight: 1}
`})
	req := httptest.NewRequest("POST", "/v1/rollouts", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.StartRollout(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("StartRollout status = %d, want 400", rec.Code)
	}
	if _, ok := store.Get("a"); ok {
		t.Fatalf("endpoint created from an invalid plan")
	}
}
