package strikes

import (
	"sync"

	"OptPull/pkg/config"
)

// Depths is the strike window for one index.
type Depths struct {
	Step float64
	ITM  int
	OTM  int
}

func (d Depths) min() int {
	if d.ITM < d.OTM {
		return d.ITM
	}
	return d.OTM
}

// Registry holds per-index depth configuration. The baseline is captured once
// at construction and frozen; only the current depths may be rewritten (by the
// strike-scale controller in mutating mode).
type Registry struct {
	mu       sync.RWMutex
	current  map[string]Depths
	baseline map[string]Depths
	order    []string
}

// NewRegistry captures baselines from the enabled index configuration.
func NewRegistry(indices []config.IndexConfig) *Registry {
	r := &Registry{
		current:  make(map[string]Depths, len(indices)),
		baseline: make(map[string]Depths, len(indices)),
	}
	for _, idx := range indices {
		d := Depths{Step: idx.StrikeStep, ITM: idx.ITMDepth, OTM: idx.OTMDepth}
		r.current[idx.Name] = d
		r.baseline[idx.Name] = d
		r.order = append(r.order, idx.Name)
	}
	return r
}

// Depths returns the current depth window for an index.
func (r *Registry) Depths(index string) (Depths, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.current[index]
	return d, ok
}

// SetDepths rewrites the current depth window for an index.
func (r *Registry) SetDepths(index string, d Depths) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.current[index]; ok {
		r.current[index] = d
	}
}

// Baseline returns the frozen baseline window for an index.
func (r *Registry) Baseline(index string) (Depths, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.baseline[index]
	return d, ok
}

// BaselineMinDepth is the smallest baseline depth across all indices; the
// strike-scale floor is expressed against it.
func (r *Registry) BaselineMinDepth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	min := 0
	for _, d := range r.baseline {
		if m := d.min(); min == 0 || m < min {
			min = m
		}
	}
	return min
}

// Indices lists registered index names in configuration order.
func (r *Registry) Indices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
