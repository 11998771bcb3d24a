package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"variant-orchestrator/core/models"
	"variant-orchestrator/core/training"

	"github.com/gorilla/mux"
)

// TrainingHandler handles training job HTTP requests
type TrainingHandler struct {
	submitter *training.Submitter
	service   training.TrainingService
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(submitter *training.Submitter, service training.TrainingService) *TrainingHandler {
	return &TrainingHandler{submitter: submitter, service: service}
}

// SubmitTrainingRequest represents the request to submit a training job
type SubmitTrainingRequest struct {
	Name            string            `json:"name"`
	Image           string            `json:"image"`
	EntryScript     string            `json:"entry_script"`
	Hyperparameters map[string]string `json:"hyperparameters"`
	InstanceType    string            `json:"instance_type"`
	InstanceCount   int               `json:"instance_count"`
	OutputPath      string            `json:"output_path"`
	MaxRuntimeSecs  int               `json:"max_runtime_seconds"`
	WarmPoolSecs    int               `json:"warm_pool_seconds"`
}

// SubmitTraining handles POST /v1/trainings
func (h *TrainingHandler) SubmitTraining(w http.ResponseWriter, r *http.Request) {
	var req SubmitTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	count := req.InstanceCount
	if count <= 0 {
		count = 1
	}

	job, err := h.submitter.Submit(r.Context(), models.TrainingJobSpec{
		Name:            req.Name,
		Image:           req.Image,
		EntryScript:     req.EntryScript,
		Hyperparameters: req.Hyperparameters,
		Compute: models.ComputeProfile{
			InstanceType:  req.InstanceType,
			InstanceCount: count,
		},
		OutputPath:        req.OutputPath,
		MaxRuntime:        time.Duration(req.MaxRuntimeSecs) * time.Second,
		WarmPoolRetention: time.Duration(req.WarmPoolSecs) * time.Second,
	})
	if err != nil {
		http.Error(w, "Failed to submit training job: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"name":         job.Name,
		"status":       job.Status,
		"submitted_at": job.SubmittedAt,
	})
}

// GetTraining handles GET /v1/trainings/{name}
func (h *TrainingHandler) GetTraining(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	status, reason, err := h.service.DescribeTrainingJob(r.Context(), vars["name"])
	if err != nil {
		http.Error(w, "Failed to describe training job: "+err.Error(), http.StatusBadGateway)
		return
	}

	response := map[string]interface{}{
		"name":   vars["name"],
		"status": status,
	}
	if reason != "" {
		response["failure_reason"] = reason
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
