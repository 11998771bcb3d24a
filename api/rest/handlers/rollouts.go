package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/models"
	"variant-orchestrator/core/registry"
	"variant-orchestrator/core/repository"
	"variant-orchestrator/core/rollout"
	"variant-orchestrator/core/spec"

	"github.com/gorilla/mux"
)

// RolloutHandler handles evaluation and rollout HTTP requests
type RolloutHandler struct {
	driver      *rollout.Driver
	controller  *endpoint.Controller
	registry    *registry.Registry
	store       *EndpointStore
	evalRepo    *repository.EvaluationRepository
	rolloutRepo *repository.RolloutRepository
	mappings    map[string]rollout.LabelMapping
}

// NewRolloutHandler creates a new rollout handler
func NewRolloutHandler(
	driver *rollout.Driver,
	controller *endpoint.Controller,
	reg *registry.Registry,
	store *EndpointStore,
	evalRepo *repository.EvaluationRepository,
	rolloutRepo *repository.RolloutRepository,
) *RolloutHandler {
	return &RolloutHandler{
		driver:      driver,
		controller:  controller,
		registry:    reg,
		store:       store,
		evalRepo:    evalRepo,
		rolloutRepo: rolloutRepo,
		mappings: map[string]rollout.LabelMapping{
			// The raw mapping treats the trimmed response body as the label
			"raw": func(payload []byte) (string, error) {
				return strings.TrimSpace(string(payload)), nil
			},
			// The json mapping reads {"label": "..."} responses
			"json": func(payload []byte) (string, error) {
				var out struct {
					Label string `json:"label"`
				}
				if err := json.Unmarshal(payload, &out); err != nil {
					return "", fmt.Errorf("unparseable model output: %w", err)
				}
				if out.Label == "" {
					return "", fmt.Errorf("model output has no label field")
				}
				return out.Label, nil
			},
		},
	}
}

// EvaluateRequest represents the request to evaluate a variant
type EvaluateRequest struct {
	VariantID string `json:"variant_id"`
	Mapping   string `json:"mapping"`
	Samples   []struct {
		Input       string `json:"input"`
		ContentType string `json:"content_type"`
		Expected    string `json:"expected"`
	} `json:"samples"`
}

// Evaluate handles POST /v1/endpoints/{id}/evaluations
func (h *RolloutHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.store.Get(vars["id"])
	if !ok {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mappingName := req.Mapping
	if mappingName == "" {
		mappingName = "raw"
	}
	mapping, ok := h.mappings[mappingName]
	if !ok {
		http.Error(w, "Unknown label mapping: "+mappingName, http.StatusBadRequest)
		return
	}

	samples := make([]models.Sample, len(req.Samples))
	for i, s := range req.Samples {
		contentType := s.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		samples[i] = models.Sample{
			Input:         []byte(s.Input),
			ContentType:   contentType,
			ExpectedLabel: s.Expected,
		}
	}

	eval, err := h.driver.EvaluateVariant(r.Context(), ep, req.VariantID, samples, mapping)
	if err != nil {
		http.Error(w, "Evaluation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":           eval.ID,
		"endpoint_id":  eval.EndpointID,
		"variant_id":   eval.VariantID,
		"sample_count": eval.SampleCount,
		"correct":      eval.Correct,
		"error_count":  eval.ErrorCount,
		"accuracy":     eval.Accuracy,
	})
}

// ListEvaluations handles GET /v1/endpoints/{id}/evaluations
func (h *RolloutHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	evals, err := h.evalRepo.GetEvaluations(r.Context(), vars["id"], 50)
	if err != nil {
		http.Error(w, "Failed to fetch evaluations: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(evals))
	for i, e := range evals {
		items[i] = map[string]interface{}{
			"id":           e.ID,
			"variant_id":   e.VariantID,
			"sample_count": e.SampleCount,
			"correct":      e.Correct,
			"error_count":  e.ErrorCount,
			"accuracy":     e.Accuracy,
			"started_at":   e.StartedAt,
			"finished_at":  e.FinishedAt,
		}
	}

	response := map[string]interface{}{
		"items": items,
	}
	if latest, err := h.evalRepo.LatestAccuracy(r.Context(), vars["id"]); err == nil && len(latest) > 0 {
		response["latest_accuracy"] = latest
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ShiftTrafficRequest represents the request to shift traffic weights
type ShiftTrafficRequest struct {
	Weights      map[string]float64 `json:"weights"`
	PollInterval string             `json:"poll_interval"`
	MaxWait      string             `json:"max_wait"`
}

// ShiftTraffic handles POST /v1/endpoints/{id}/shift. The call blocks until
// the new weights are observed live or the wait budget runs out.
func (h *RolloutHandler) ShiftTraffic(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.store.Get(vars["id"])
	if !ok {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	var req ShiftTrafficRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pollInterval, err := durationOrDefault(req.PollInterval, 15*time.Second)
	if err != nil {
		http.Error(w, "Invalid poll_interval: "+err.Error(), http.StatusBadRequest)
		return
	}
	maxWait, err := durationOrDefault(req.MaxWait, 10*time.Minute)
	if err != nil {
		http.Error(w, "Invalid max_wait: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.driver.ShiftTraffic(r.Context(), ep, req.Weights, pollInterval, maxWait); err != nil {
		http.Error(w, "Traffic shift failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.store.Put(ep)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      ep.ID,
		"status":  ep.Status,
		"weights": req.Weights,
	})
}

// StartRolloutRequest represents the request to start a progressive rollout
type StartRolloutRequest struct {
	PlanYAML string `json:"plan_yaml"`
}

// StartRollout handles POST /v1/rollouts. The plan's endpoint is created if
// this process does not already manage it, then the weight steps run in the
// background; progress lands in the rollout event log.
func (h *RolloutHandler) StartRollout(w http.ResponseWriter, r *http.Request) {
	var req StartRolloutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan, err := spec.ParseRolloutPlan(req.PlanYAML)
	if err != nil {
		http.Error(w, "Invalid rollout plan: "+err.Error(), http.StatusBadRequest)
		return
	}

	ep, exists := h.store.Get(plan.EndpointID)
	if !exists {
		variants := make([]models.Variant, len(plan.Variants))
		for i, vs := range plan.Variants {
			v, err := h.registry.Register(vs.ID, vs.ModelRef, vs.Compute, vs.Weight)
			if err != nil {
				// An already-registered variant is reused; any other
				// registration failure aborts the plan.
				var dup *models.DuplicateVariantError
				if !errors.As(err, &dup) {
					http.Error(w, "Failed to register variant: "+err.Error(), http.StatusBadRequest)
					return
				}
				v, _ = h.registry.Get(vs.ID)
			}
			variants[i] = *v
		}

		ep, err = h.controller.Create(r.Context(), plan.EndpointID, variants)
		if err != nil {
			http.Error(w, "Failed to create endpoint: "+err.Error(), http.StatusBadRequest)
			return
		}
		h.store.Put(ep)
	}

	go h.runRollout(ep, plan, !exists)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"endpoint_id": plan.EndpointID,
		"steps":       len(plan.Steps),
		"status":      "started",
	})
}

// runRollout owns its copy of the endpoint and publishes state back to the
// store as the plan progresses.
func (h *RolloutHandler) runRollout(ep *models.Endpoint, plan *models.RolloutPlan, awaitCreate bool) {
	ctx := context.Background()

	if awaitCreate {
		if _, err := h.controller.AwaitReady(ctx, ep); err != nil {
			log.Printf("Rollout for endpoint %s aborted, endpoint never became ready: %v", ep.ID, err)
			return
		}
		h.store.Put(ep)
	}

	err := h.driver.ProgressiveRollout(ctx, ep, plan.Steps, plan.PauseBetween, plan.PollInterval, plan.MaxWait)
	h.store.Put(ep)
	if err != nil {
		log.Printf("Rollout for endpoint %s stopped: %v", ep.ID, err)
		return
	}
	log.Printf("Rollout for endpoint %s completed all %d steps", ep.ID, len(plan.Steps))
}

// ListRolloutEvents handles GET /v1/endpoints/{id}/rollout-events
func (h *RolloutHandler) ListRolloutEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	events, err := h.rolloutRepo.GetRolloutEvents(r.Context(), vars["id"], 100)
	if err != nil {
		http.Error(w, "Failed to fetch rollout events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(events))
	for i, e := range events {
		item := map[string]interface{}{
			"step":      e.Step,
			"weights":   e.Weights,
			"succeeded": e.Succeeded,
			"at":        e.At,
		}
		if e.Error != "" {
			item["error"] = e.Error
		}
		items[i] = item
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}

func durationOrDefault(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
