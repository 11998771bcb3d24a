package models

import "time"

// Sample is one labelled evaluation input
type Sample struct {
	Input         []byte
	ContentType   string
	ExpectedLabel string
}

// EvaluationRecord is the outcome of evaluating a single sample against a variant
type EvaluationRecord struct {
	VariantID   string
	Predicted   string
	Expected    string
	Correct     bool
	InvokeError string // transport failure detail; empty when the invocation succeeded
	At          time.Time
}

// Evaluation aggregates one evaluation batch for a variant
type Evaluation struct {
	ID          string
	EndpointID  string
	VariantID   string
	SampleCount int
	Correct     int
	ErrorCount  int // invocations that failed in transit, counted separately from model wrongness
	Accuracy    float64
	Records     []EvaluationRecord
	StartedAt   time.Time
	FinishedAt  time.Time
}

// RolloutStep is one step of a progressive rollout: a full weight split
// across every variant on the endpoint
type RolloutStep struct {
	Weights map[string]float64
}

// RolloutEvent records the outcome of one applied rollout step
type RolloutEvent struct {
	ID         int64
	EndpointID string
	Step       int // 1-based
	Weights    map[string]float64
	Succeeded  bool
	Error      string
	At         time.Time
}
