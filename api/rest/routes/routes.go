package routes

import (
	"variant-orchestrator/api/rest/handlers"
	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/monitoring"
	"variant-orchestrator/core/pricing"
	"variant-orchestrator/core/registry"
	"variant-orchestrator/core/repository"
	"variant-orchestrator/core/rollout"
	"variant-orchestrator/core/tracking"
	"variant-orchestrator/core/training"

	"github.com/gorilla/mux"
)

// Deps carries the wired application components the routes expose
type Deps struct {
	Registry   *registry.Registry
	Controller *endpoint.Controller
	Driver     *rollout.Driver
	Tracker    *tracking.Tracker
	Submitter  *training.Submitter
	Training   training.TrainingService
	Pricing    *pricing.Fetcher
	Reporter   *monitoring.Reporter
	DB         *repository.DB
}

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, deps Deps) {
	store := handlers.NewEndpointStore()
	evalRepo := repository.NewEvaluationRepository(deps.DB)
	rolloutRepo := repository.NewRolloutRepository(deps.DB)

	endpointHandler := handlers.NewEndpointHandler(deps.Registry, deps.Controller, store, deps.Pricing, deps.Reporter)
	rolloutHandler := handlers.NewRolloutHandler(deps.Driver, deps.Controller, deps.Registry, store, evalRepo, rolloutRepo)
	runHandler := handlers.NewRunHandler(deps.Tracker)
	trainingHandler := handlers.NewTrainingHandler(deps.Submitter, deps.Training)

	api := r.PathPrefix("/v1").Subrouter()

	// Variant endpoints
	api.HandleFunc("/variants", endpointHandler.RegisterVariant).Methods("POST")
	api.HandleFunc("/variants", endpointHandler.ListVariants).Methods("GET")

	// Endpoint lifecycle
	api.HandleFunc("/endpoints", endpointHandler.CreateEndpoint).Methods("POST")
	api.HandleFunc("/endpoints/{id}", endpointHandler.GetEndpoint).Methods("GET")
	api.HandleFunc("/endpoints/{id}", endpointHandler.DeleteEndpoint).Methods("DELETE")
	api.HandleFunc("/endpoints/{id}/weights", endpointHandler.SetWeights).Methods("POST")
	api.HandleFunc("/endpoints/{id}/invoke", endpointHandler.Invoke).Methods("POST")
	api.HandleFunc("/endpoints/{id}/traffic", endpointHandler.GetTraffic).Methods("GET")

	// Evaluation and rollout
	api.HandleFunc("/endpoints/{id}/evaluations", rolloutHandler.Evaluate).Methods("POST")
	api.HandleFunc("/endpoints/{id}/evaluations", rolloutHandler.ListEvaluations).Methods("GET")
	api.HandleFunc("/endpoints/{id}/shift", rolloutHandler.ShiftTraffic).Methods("POST")
	api.HandleFunc("/endpoints/{id}/rollout-events", rolloutHandler.ListRolloutEvents).Methods("GET")
	api.HandleFunc("/rollouts", rolloutHandler.StartRollout).Methods("POST")

	// Experiment runs
	api.HandleFunc("/runs", runHandler.StartRun).Methods("POST")
	api.HandleFunc("/runs/table", runHandler.CompareRuns).Methods("GET")
	api.HandleFunc("/runs/{id}/params", runHandler.LogParam).Methods("POST")
	api.HandleFunc("/runs/{id}/metrics", runHandler.LogMetric).Methods("POST")
	api.HandleFunc("/runs/{id}/artifacts", runHandler.LogArtifact).Methods("POST")
	api.HandleFunc("/runs/{id}/finish", runHandler.FinishRun).Methods("POST")

	// Training jobs
	api.HandleFunc("/trainings", trainingHandler.SubmitTraining).Methods("POST")
	api.HandleFunc("/trainings/{name}", trainingHandler.GetTraining).Methods("GET")
}
