package spec

import (
	"fmt"
	"time"

	"variant-orchestrator/core/models"

	"gopkg.in/yaml.v3"
)

// PlanSpec represents the YAML rollout plan document
type PlanSpec struct {
	Plan PlanSpecPlan `yaml:"plan"`
}

// PlanSpecPlan represents the plan section of the document
type PlanSpecPlan struct {
	Endpoint string            `yaml:"endpoint"`
	Variants []PlanSpecVariant `yaml:"variants"`
	Rollout  PlanSpecRollout   `yaml:"rollout"`
	Polling  PlanSpecPolling   `yaml:"polling"`
}

// PlanSpecVariant represents one variant declaration
type PlanSpecVariant struct {
	ID            string  `yaml:"id"`
	Model         string  `yaml:"model"`
	InstanceType  string  `yaml:"instance_type"`
	InstanceCount int     `yaml:"instance_count"`
	Weight        float64 `yaml:"weight"`
}

// PlanSpecRollout represents the progressive rollout section
type PlanSpecRollout struct {
	Winner       string         `yaml:"winner,omitempty"`
	Steps        []PlanSpecStep `yaml:"steps"`
	PauseBetween string         `yaml:"pause_between,omitempty"` // Go duration, e.g. "2m"
}

// PlanSpecStep represents one weight split
type PlanSpecStep struct {
	Weights map[string]float64 `yaml:"weights"`
}

// PlanSpecPolling represents the convergence polling budget
type PlanSpecPolling struct {
	Interval string `yaml:"interval,omitempty"`
	MaxWait  string `yaml:"max_wait,omitempty"`
}

// ParseRolloutPlan parses a YAML rollout plan into a RolloutPlan model
func ParseRolloutPlan(planYAML string) (*models.RolloutPlan, error) {
	var doc PlanSpec
	if err := yaml.Unmarshal([]byte(planYAML), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if doc.Plan.Endpoint == "" {
		return nil, fmt.Errorf("plan.endpoint is required")
	}
	if len(doc.Plan.Variants) == 0 {
		return nil, fmt.Errorf("plan.variants must declare at least one variant")
	}

	plan := &models.RolloutPlan{
		EndpointID: doc.Plan.Endpoint,
		Winner:     doc.Plan.Rollout.Winner,
	}

	seen := make(map[string]bool)
	for _, v := range doc.Plan.Variants {
		if v.ID == "" {
			return nil, fmt.Errorf("variant with empty id")
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("variant %q declared twice", v.ID)
		}
		seen[v.ID] = true

		if v.Weight < 0 {
			return nil, fmt.Errorf("variant %q has negative weight %v", v.ID, v.Weight)
		}

		count := v.InstanceCount
		if count == 0 {
			count = 1
		}

		plan.Variants = append(plan.Variants, models.VariantSpec{
			ID:       v.ID,
			ModelRef: v.Model,
			Compute: models.ComputeProfile{
				InstanceType:  v.InstanceType,
				InstanceCount: count,
			},
			Weight: v.Weight,
		})
	}

	for i, step := range doc.Plan.Rollout.Steps {
		if len(step.Weights) == 0 {
			return nil, fmt.Errorf("rollout step %d has no weights", i+1)
		}
		for variantID := range step.Weights {
			if !seen[variantID] {
				return nil, fmt.Errorf("rollout step %d names undeclared variant %q", i+1, variantID)
			}
		}
		plan.Steps = append(plan.Steps, models.RolloutStep{Weights: step.Weights})
	}

	if plan.Winner != "" && !seen[plan.Winner] {
		return nil, fmt.Errorf("rollout winner %q is not a declared variant", plan.Winner)
	}

	var err error
	plan.PauseBetween, err = parseDuration(doc.Plan.Rollout.PauseBetween, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid rollout.pause_between: %w", err)
	}
	plan.PollInterval, err = parseDuration(doc.Plan.Polling.Interval, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid polling.interval: %w", err)
	}
	plan.MaxWait, err = parseDuration(doc.Plan.Polling.MaxWait, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid polling.max_wait: %w", err)
	}

	return plan, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
