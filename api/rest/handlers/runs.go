package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"variant-orchestrator/core/models"
	"variant-orchestrator/core/tracking"

	"github.com/gorilla/mux"
)

// RunHandler handles experiment run HTTP requests
type RunHandler struct {
	tracker *tracking.Tracker

	mu   sync.RWMutex
	runs map[string]*models.Run // runs started by this process
}

// NewRunHandler creates a new run handler
func NewRunHandler(tracker *tracking.Tracker) *RunHandler {
	return &RunHandler{
		tracker: tracker,
		runs:    make(map[string]*models.Run),
	}
}

func (h *RunHandler) getRun(id string) (*models.Run, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	run, ok := h.runs[id]
	return run, ok
}

// StartRun handles POST /v1/runs
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := h.tracker.StartRun(r.Context(), req.Name)
	if err != nil {
		http.Error(w, "Failed to start run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.runs[run.ID] = run
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":         run.ID,
		"name":       run.Name,
		"status":     run.Status,
		"started_at": run.StartedAt,
	})
}

// LogParam handles POST /v1/runs/{id}/params
func (h *RunHandler) LogParam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	run, ok := h.getRun(vars["id"])
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.tracker.LogParam(r.Context(), run, req.Key, req.Value); err != nil {
		http.Error(w, "Failed to log param: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogMetric handles POST /v1/runs/{id}/metrics
func (h *RunHandler) LogMetric(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	run, ok := h.getRun(vars["id"])
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var req struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
		Step  int     `json:"step"`
		Split string  `json:"split"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.tracker.LogMetric(r.Context(), run, req.Name, req.Value, req.Step, req.Split); err != nil {
		http.Error(w, "Failed to log metric: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogArtifact handles POST /v1/runs/{id}/artifacts
func (h *RunHandler) LogArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	run, ok := h.getRun(vars["id"])
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var req struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.tracker.LogArtifact(r.Context(), run, req.URI); err != nil {
		http.Error(w, "Failed to log artifact: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FinishRun handles POST /v1/runs/{id}/finish
func (h *RunHandler) FinishRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	run, ok := h.getRun(vars["id"])
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status := models.RunStatus(req.Status)
	if status == "" {
		status = models.RunStatusCompleted
	}

	if err := h.tracker.EndRun(r.Context(), run, status); err != nil {
		http.Error(w, "Failed to finish run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       run.ID,
		"status":   run.Status,
		"ended_at": run.EndedAt,
	})
}

// CompareRuns handles GET /v1/runs/table?ids=a,b,c
func (h *RunHandler) CompareRuns(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		http.Error(w, "ids query parameter is required", http.StatusBadRequest)
		return
	}

	table, err := h.tracker.ExportTable(r.Context(), strings.Split(idsParam, ","))
	if err != nil {
		http.Error(w, "Failed to build comparison table: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"columns": table.Columns,
		"rows":    table.Rows,
	})
}
