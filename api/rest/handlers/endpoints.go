package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/models"
	"variant-orchestrator/core/monitoring"
	"variant-orchestrator/core/pricing"
	"variant-orchestrator/core/registry"

	"github.com/gorilla/mux"
)

// EndpointStore tracks the endpoints this process manages, keyed by ID.
// Handlers share one store so a rollout can find the endpoint a create
// handler made. Put and Get both copy, so no two goroutines ever hold the
// same Endpoint; after mutating a copy, publish it back with Put.
type EndpointStore struct {
	mu        sync.RWMutex
	endpoints map[string]*models.Endpoint
}

// NewEndpointStore creates an empty endpoint store
func NewEndpointStore() *EndpointStore {
	return &EndpointStore{endpoints: make(map[string]*models.Endpoint)}
}

// Put stores a snapshot of the endpoint
func (s *EndpointStore) Put(ep *models.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[ep.ID] = ep.Clone()
}

// Get returns a copy of the endpoint with the given ID
func (s *EndpointStore) Get(id string) (*models.Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[id]
	if !ok {
		return nil, false
	}
	return ep.Clone(), true
}

// Remove drops an endpoint from the store
func (s *EndpointStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endpoints, id)
}

// EndpointHandler handles variant and endpoint HTTP requests
type EndpointHandler struct {
	registry   *registry.Registry
	controller *endpoint.Controller
	store      *EndpointStore
	pricing    *pricing.Fetcher
	reporter   *monitoring.Reporter
}

// NewEndpointHandler creates a new endpoint handler
func NewEndpointHandler(
	reg *registry.Registry,
	controller *endpoint.Controller,
	store *EndpointStore,
	fetcher *pricing.Fetcher,
	reporter *monitoring.Reporter,
) *EndpointHandler {
	return &EndpointHandler{
		registry:   reg,
		controller: controller,
		store:      store,
		pricing:    fetcher,
		reporter:   reporter,
	}
}

// RegisterVariantRequest represents the request to register a variant
type RegisterVariantRequest struct {
	ID            string  `json:"id"`
	ModelRef      string  `json:"model_ref"`
	InstanceType  string  `json:"instance_type"`
	InstanceCount int     `json:"instance_count"`
	Weight        float64 `json:"weight"`
}

// RegisterVariant handles POST /v1/variants
func (h *EndpointHandler) RegisterVariant(w http.ResponseWriter, r *http.Request) {
	var req RegisterVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	count := req.InstanceCount
	if count <= 0 {
		count = 1
	}

	variant, err := h.registry.Register(req.ID, req.ModelRef, models.ComputeProfile{
		InstanceType:  req.InstanceType,
		InstanceCount: count,
	}, req.Weight)
	if err != nil {
		http.Error(w, "Failed to register variant: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":            variant.ID,
		"model_ref":     variant.ModelRef,
		"weight":        variant.Weight,
		"registered_at": variant.RegisteredAt,
	})
}

// ListVariants handles GET /v1/variants
func (h *EndpointHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants := h.registry.List()

	items := make([]map[string]interface{}, len(variants))
	for i, v := range variants {
		items[i] = map[string]interface{}{
			"id":             v.ID,
			"model_ref":      v.ModelRef,
			"instance_type":  v.Compute.InstanceType,
			"instance_count": v.Compute.InstanceCount,
			"weight":         v.Weight,
			"registered_at":  v.RegisteredAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}

// CreateEndpointRequest represents the request to create an endpoint
type CreateEndpointRequest struct {
	ID         string   `json:"id"`
	VariantIDs []string `json:"variant_ids"`
}

// CreateEndpoint handles POST /v1/endpoints
func (h *EndpointHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req CreateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "Endpoint id is required", http.StatusBadRequest)
		return
	}
	if _, exists := h.store.Get(req.ID); exists {
		http.Error(w, "Endpoint already exists", http.StatusConflict)
		return
	}

	variants := make([]models.Variant, 0, len(req.VariantIDs))
	for _, id := range req.VariantIDs {
		v, ok := h.registry.Get(id)
		if !ok {
			http.Error(w, "Unknown variant: "+id, http.StatusBadRequest)
			return
		}
		variants = append(variants, *v)
	}

	ep, err := h.controller.Create(r.Context(), req.ID, variants)
	if err != nil {
		http.Error(w, "Failed to create endpoint: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.store.Put(ep)

	// Provisioning takes minutes; watch it in the background so the
	// request can return immediately. The watcher owns its own copy and
	// publishes the outcome back to the store.
	watched := ep.Clone()
	go func() {
		if _, err := h.controller.AwaitReady(context.Background(), watched); err != nil {
			log.Printf("Endpoint %s did not become ready: %v", watched.ID, err)
		}
		h.store.Put(watched)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":         ep.ID,
		"status":     ep.Status,
		"variants":   ep.VariantIDs(),
		"created_at": ep.CreatedAt,
	})
}

// GetEndpoint handles GET /v1/endpoints/{id}
func (h *EndpointHandler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.store.Get(vars["id"])
	if !ok {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	weights, err := h.controller.CurrentWeights(r.Context(), ep)
	if err != nil {
		http.Error(w, "Failed to read endpoint: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.store.Put(ep)

	variants := make([]map[string]interface{}, len(ep.Variants))
	for i, v := range ep.Variants {
		variants[i] = map[string]interface{}{
			"id":             v.ID,
			"model_ref":      v.ModelRef,
			"instance_type":  v.Compute.InstanceType,
			"instance_count": v.Compute.InstanceCount,
			"weight":         weights[v.ID],
		}
	}

	response := map[string]interface{}{
		"id":         ep.ID,
		"status":     ep.Status,
		"variants":   variants,
		"created_at": ep.CreatedAt,
	}

	if cost, err := h.pricing.EstimateEndpointCost(r.Context(), ep); err == nil {
		response["estimated_hourly_usd"] = cost
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// SetWeightsRequest represents the request to update traffic weights
type SetWeightsRequest struct {
	Weights map[string]float64 `json:"weights"`
}

// SetWeights handles POST /v1/endpoints/{id}/weights
func (h *EndpointHandler) SetWeights(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.store.Get(vars["id"])
	if !ok {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	var req SetWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.controller.SetWeights(r.Context(), ep, req.Weights); err != nil {
		http.Error(w, "Failed to update weights: "+err.Error(), http.StatusBadRequest)
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

// Invoke handles POST /v1/endpoints/{id}/invoke
func (h *EndpointHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.store.Get(vars["id"])
	if !ok {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	result, err := h.controller.Invoke(r.Context(), ep, models.InvocationRequest{
		Payload:       payload,
		ContentType:   contentType,
		TargetVariant: r.URL.Query().Get("variant"),
	})
	if err != nil {
		http.Error(w, "Invocation failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"variant_id": result.VariantID,
		"payload":    string(result.Payload),
		"timestamp":  result.Timestamp,
	})
}

// DeleteEndpoint handles DELETE /v1/endpoints/{id}
func (h *EndpointHandler) DeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.store.Get(vars["id"])
	if !ok {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	if err := h.controller.Delete(r.Context(), ep); err != nil {
		http.Error(w, "Failed to delete endpoint: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.store.Remove(ep.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     ep.ID,
		"status": models.EndpointDeleted,
	})
}

// GetTraffic handles GET /v1/endpoints/{id}/traffic
func (h *EndpointHandler) GetTraffic(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, ok := h.store.Get(vars["id"])
	if !ok {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	window := time.Hour
	if windowParam := r.URL.Query().Get("window"); windowParam != "" {
		d, err := time.ParseDuration(windowParam)
		if err != nil {
			http.Error(w, "Invalid window: "+err.Error(), http.StatusBadRequest)
			return
		}
		window = d
	}

	end := time.Now()
	report, err := h.reporter.TrafficReport(r.Context(), ep, end.Add(-window), end)
	if err != nil {
		http.Error(w, "Failed to fetch traffic: "+err.Error(), http.StatusBadGateway)
		return
	}

	items := make([]map[string]interface{}, len(report))
	for i, t := range report {
		items[i] = map[string]interface{}{
			"variant_id":     t.VariantID,
			"invocations":    t.Invocations,
			"share":          t.Share,
			"avg_latency_ms": float64(t.AvgLatency.Microseconds()) / 1000.0,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"endpoint_id": ep.ID,
		"window":      window.String(),
		"items":       items,
	})
}
