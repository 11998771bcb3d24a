package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"variant-orchestrator/api/rest/routes"
	"variant-orchestrator/config"
	"variant-orchestrator/core/endpoint"
	"variant-orchestrator/core/monitoring"
	"variant-orchestrator/core/pricing"
	"variant-orchestrator/core/registry"
	"variant-orchestrator/core/repository"
	"variant-orchestrator/core/rollout"
	"variant-orchestrator/core/tracking"
	"variant-orchestrator/core/training"

	"variant-orchestrator/providers/aws"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	// Initialize database
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Database connected successfully")

	// Initialize the hosting provider
	ctx := context.Background()
	awsClient, err := aws.NewClient(ctx, cfg.AWSRegion, cfg.SageMakerRoleARN)
	if err != nil {
		log.Fatalf("Failed to initialize AWS client: %v", err)
	}

	// Initialize pricing fetcher
	pricingFetcher := pricing.NewFetcher(awsClient, db.DB, cfg.AWSRegion)
	go pricingFetcher.StartRefreshWorker(ctx)

	// Initialize core components
	reg := registry.NewRegistry()
	controller := endpoint.NewController(awsClient, endpoint.Config{
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.MaxWait,
	})
	driver := rollout.NewDriver(controller,
		repository.NewEvaluationRepository(db),
		repository.NewRolloutRepository(db))
	tracker := tracking.NewTracker(repository.NewRunRepository(db))
	submitter := training.NewSubmitter(awsClient)
	reporter := monitoring.NewReporter(awsClient)

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, routes.Deps{
		Registry:   reg,
		Controller: controller,
		Driver:     driver,
		Tracker:    tracker,
		Submitter:  submitter,
		Training:   awsClient,
		Pricing:    pricingFetcher,
		Reporter:   reporter,
		DB:         db,
	})

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
