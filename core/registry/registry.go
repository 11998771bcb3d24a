package registry

import (
	"sync"
	"time"

	"variant-orchestrator/core/models"
)

// Registry holds the variants declared for an experiment before an
// endpoint is created from them
type Registry struct {
	mu       sync.RWMutex
	variants map[string]*models.Variant
	order    []string
}

// NewRegistry creates an empty variant registry
func NewRegistry() *Registry {
	return &Registry{
		variants: make(map[string]*models.Variant),
	}
}

// Register declares a new variant. The initial weight must be >= 0 and the
// variant ID must be unique within the registry.
func (r *Registry) Register(variantID, modelRef string, compute models.ComputeProfile, initialWeight float64) (*models.Variant, error) {
	if initialWeight < 0 {
		return nil, &models.InvalidWeightError{VariantID: variantID, Weight: initialWeight}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.variants[variantID]; exists {
		return nil, &models.DuplicateVariantError{VariantID: variantID}
	}

	v := &models.Variant{
		ID:           variantID,
		ModelRef:     modelRef,
		Compute:      compute,
		Weight:       initialWeight,
		RegisteredAt: time.Now(),
	}
	r.variants[variantID] = v
	r.order = append(r.order, variantID)

	return v, nil
}

// Get returns a registered variant by ID
func (r *Registry) Get(variantID string) (*models.Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.variants[variantID]
	return v, ok
}

// List returns all variants in registration order. The order is for
// deterministic display only, never for routing.
func (r *Registry) List() []*models.Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Variant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.variants[id])
	}
	return out
}
