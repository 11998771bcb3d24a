package models

import "time"

// VariantSpec is a variant declaration inside a rollout plan
type VariantSpec struct {
	ID       string
	ModelRef string
	Compute  ComputeProfile
	Weight   float64
}

// RolloutPlan is an operator-authored plan: the variants to host, the
// progressive weight steps to apply, and the polling budget for each shift
type RolloutPlan struct {
	EndpointID   string
	Variants     []VariantSpec
	Winner       string
	Steps        []RolloutStep
	PauseBetween time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

// InstancePrice is one cached hourly price for a hosting instance type
type InstancePrice struct {
	InstanceType string
	Region       string
	PricePerHour float64
	LastUpdated  time.Time
}
