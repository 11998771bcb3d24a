package models

import "time"

// Variant is a named, independently-weighted model deployment behind one endpoint
type Variant struct {
	ID           string
	ModelRef     string // name of the model artifact registered with the hosting service
	Compute      ComputeProfile
	Weight       float64 // last-known traffic weight; authoritative value lives in the control plane
	RegisteredAt time.Time
}

// ComputeProfile describes the hosting capacity for a variant
type ComputeProfile struct {
	InstanceType  string // e.g. "ml.m5.xlarge"
	InstanceCount int
}

// EndpointStatus represents the lifecycle state of an endpoint
type EndpointStatus string

const (
	EndpointCreating  EndpointStatus = "creating"
	EndpointInService EndpointStatus = "in_service"
	EndpointUpdating  EndpointStatus = "updating"
	EndpointDeleting  EndpointStatus = "deleting"
	EndpointDeleted   EndpointStatus = "deleted"
	EndpointFailed    EndpointStatus = "failed"
)

// Endpoint represents a multi-variant inference endpoint.
// Variants form a set: their order never influences routing.
type Endpoint struct {
	ID        string
	Variants  []Variant
	Status    EndpointStatus
	CreatedAt time.Time
}

// HasVariant reports whether a variant is hosted on the endpoint
func (e *Endpoint) HasVariant(variantID string) bool {
	for _, v := range e.Variants {
		if v.ID == variantID {
			return true
		}
	}
	return false
}

// VariantIDs returns the IDs of all hosted variants
func (e *Endpoint) VariantIDs() []string {
	ids := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		ids[i] = v.ID
	}
	return ids
}

// Clone returns a copy with its own variant slice, safe to mutate
// independently of the original
func (e *Endpoint) Clone() *Endpoint {
	out := *e
	out.Variants = make([]Variant, len(e.Variants))
	copy(out.Variants, e.Variants)
	return &out
}

// SetObservedWeights updates the local weight mirror from a live read
func (e *Endpoint) SetObservedWeights(weights map[string]float64) {
	for i := range e.Variants {
		if w, ok := weights[e.Variants[i].ID]; ok {
			e.Variants[i].Weight = w
		}
	}
}

// InvocationRequest is a single inference request. TargetVariant, when set,
// bypasses weighted routing and pins the request to that variant.
type InvocationRequest struct {
	Payload       []byte
	ContentType   string
	TargetVariant string
}

// InvocationResult is the response to an invocation, attributed to the
// variant the hosting service routed it to
type InvocationResult struct {
	VariantID string
	Payload   []byte
	Timestamp time.Time
}
