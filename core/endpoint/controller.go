package endpoint

import (
	"context"
	"errors"
	"log"
	"time"

	"variant-orchestrator/core/models"
)

// ErrEndpointNotFound is returned by HostingService implementations when an
// operation targets an endpoint the service no longer knows. Delete treats
// it as success.
var ErrEndpointNotFound = errors.New("endpoint not found")

// HostingService is the remote model-hosting control plane. It owns the
// authoritative endpoint state and the weighted routing distribution.
type HostingService interface {
	CreateEndpoint(ctx context.Context, endpointID string, variants []models.Variant) error
	DescribeEndpoint(ctx context.Context, endpointID string) (models.EndpointStatus, map[string]float64, error)
	UpdateWeights(ctx context.Context, endpointID string, weights map[string]float64) error
	Invoke(ctx context.Context, endpointID string, req models.InvocationRequest) (*models.InvocationResult, error)
	DeleteEndpoint(ctx context.Context, endpointID string) error
}

// Config holds the polling budget for endpoint readiness
type Config struct {
	PollInterval    time.Duration // initial poll interval, doubled per attempt
	MaxPollInterval time.Duration // backoff cap
	MaxWait         time.Duration // total readiness budget
}

// Controller is a thin facade over the hosting service. It caches nothing
// authoritative: every weight read goes to the service.
type Controller struct {
	hosting HostingService
	cfg     Config
}

// NewController creates a controller over a hosting service
func NewController(hosting HostingService, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = 2 * time.Minute
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 20 * time.Minute
	}
	return &Controller{hosting: hosting, cfg: cfg}
}

// Create provisions a multi-variant endpoint. It returns once the service
// acknowledges the request; the endpoint is still Creating at that point.
func (c *Controller) Create(ctx context.Context, endpointID string, variants []models.Variant) (*models.Endpoint, error) {
	if len(variants) == 0 {
		return nil, &models.EmptyVariantSetError{EndpointID: endpointID}
	}

	total := 0.0
	for _, v := range variants {
		if v.Weight < 0 {
			return nil, &models.InvalidWeightError{VariantID: v.ID, Weight: v.Weight}
		}
		total += v.Weight
	}
	if total <= 0 {
		return nil, &models.InvalidWeightError{Weight: total}
	}

	if err := c.hosting.CreateEndpoint(ctx, endpointID, variants); err != nil {
		return nil, &models.ProvisioningError{EndpointID: endpointID, Cause: err}
	}

	log.Printf("Endpoint %s creation acknowledged with %d variants", endpointID, len(variants))

	return &models.Endpoint{
		ID:        endpointID,
		Variants:  variants,
		Status:    models.EndpointCreating,
		CreatedAt: time.Now(),
	}, nil
}

// AwaitReady blocks until the endpoint is InService, polling with bounded
// exponential backoff. A terminal Failed/Deleted status surfaces as a
// ProvisioningError; an exhausted budget as a ProvisioningTimeoutError.
func (c *Controller) AwaitReady(ctx context.Context, ep *models.Endpoint) (*models.Endpoint, error) {
	start := time.Now()
	interval := c.cfg.PollInterval

	for {
		status, weights, err := c.hosting.DescribeEndpoint(ctx, ep.ID)
		if err != nil {
			return nil, &models.ProvisioningError{EndpointID: ep.ID, Cause: err}
		}

		ep.Status = status
		ep.SetObservedWeights(weights)

		switch status {
		case models.EndpointInService:
			log.Printf("Endpoint %s is in service after %v", ep.ID, time.Since(start).Round(time.Second))
			return ep, nil
		case models.EndpointFailed, models.EndpointDeleted, models.EndpointDeleting:
			return nil, &models.ProvisioningError{EndpointID: ep.ID, Status: status}
		}

		if time.Since(start)+interval > c.cfg.MaxWait {
			return nil, &models.ProvisioningTimeoutError{
				EndpointID: ep.ID,
				LastStatus: status,
				Waited:     time.Since(start),
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > c.cfg.MaxPollInterval {
			interval = c.cfg.MaxPollInterval
		}
	}
}

// Invoke sends one inference request. A TargetVariant pin is validated
// locally before any remote call; without a pin the service performs
// weighted routing and the result records which variant answered.
func (c *Controller) Invoke(ctx context.Context, ep *models.Endpoint, req models.InvocationRequest) (*models.InvocationResult, error) {
	if req.TargetVariant != "" && !ep.HasVariant(req.TargetVariant) {
		return nil, &models.UnknownVariantError{EndpointID: ep.ID, VariantID: req.TargetVariant}
	}

	result, err := c.hosting.Invoke(ctx, ep.ID, req)
	if err != nil {
		return nil, err
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	return result, nil
}

// SetWeights issues a single atomic weight update. Every key must name a
// variant on the endpoint; validation failures issue no remote call. A
// partial update may zero individual variants as long as the endpoint's
// post-update total stays positive.
func (c *Controller) SetWeights(ctx context.Context, ep *models.Endpoint, weights map[string]float64) error {
	total := 0.0
	for variantID, w := range weights {
		if !ep.HasVariant(variantID) {
			return &models.UnknownVariantError{EndpointID: ep.ID, VariantID: variantID}
		}
		if w < 0 {
			return &models.InvalidWeightError{VariantID: variantID, Weight: w}
		}
		total += w
	}
	// Variants the update does not cover keep their last-known weight.
	for _, v := range ep.Variants {
		if _, covered := weights[v.ID]; !covered {
			total += v.Weight
		}
	}
	if total <= 0 {
		return &models.InvalidWeightError{Weight: total}
	}

	if err := c.hosting.UpdateWeights(ctx, ep.ID, weights); err != nil {
		return &models.UpdateRejectedError{EndpointID: ep.ID, Weights: weights, Cause: err}
	}

	ep.Status = models.EndpointUpdating
	return nil
}

// CurrentWeights reads the live per-variant weights from the hosting
// service. The local mirror is refreshed as a side effect but is never the
// source of the returned values.
func (c *Controller) CurrentWeights(ctx context.Context, ep *models.Endpoint) (map[string]float64, error) {
	status, weights, err := c.hosting.DescribeEndpoint(ctx, ep.ID)
	if err != nil {
		return nil, err
	}
	ep.Status = status
	ep.SetObservedWeights(weights)
	return weights, nil
}

// Delete tears the endpoint down. Deleting an already-deleted endpoint is
// a no-op, not an error.
func (c *Controller) Delete(ctx context.Context, ep *models.Endpoint) error {
	if ep.Status == models.EndpointDeleted {
		return nil
	}

	ep.Status = models.EndpointDeleting
	if err := c.hosting.DeleteEndpoint(ctx, ep.ID); err != nil {
		if errors.Is(err, ErrEndpointNotFound) {
			ep.Status = models.EndpointDeleted
			return nil
		}
		return err
	}

	ep.Status = models.EndpointDeleted
	log.Printf("Endpoint %s deleted", ep.ID)
	return nil
}
