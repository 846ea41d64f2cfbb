package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/triagem/pkg/domain"
)

// FlowRepository implements ports.FlowRepository in memory.
type FlowRepository struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewFlowRepository creates a repository seeded with the given flows.
func NewFlowRepository(seed map[string]*domain.Flow) *FlowRepository {
	r := &FlowRepository{flows: make(map[string]*domain.Flow, len(seed))}
	for id, f := range seed {
		if f != nil {
			r.flows[id] = f.Clone()
		}
	}
	return r
}

// Get returns a copy of the stored flow.
func (r *FlowRepository) Get(_ context.Context, id string) (*domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[id]
	if !ok {
		return nil, fmt.Errorf("flow %q: %w", id, domain.ErrFlowNotFound)
	}
	return f.Clone(), nil
}

// Save stores a copy of flow under id.
func (r *FlowRepository) Save(_ context.Context, id string, flow *domain.Flow) error {
	if flow == nil {
		return domain.ErrNilFlow
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[id] = flow.Clone()
	return nil
}

// Delete removes the flow.
func (r *FlowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, id)
	return nil
}

// List returns flow IDs in ascending order.
func (r *FlowRepository) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
