package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// Registry manages the strategy catalog keyed by strategy type. It is safe
// for concurrent use.
type Registry struct {
	strategies map[domain.StrategyType]Strategy
	mu         sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[domain.StrategyType]Strategy),
	}
}

// Register adds a strategy to the registry. A strategy already registered
// under the same type is replaced.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Type()] = s
}

// Get retrieves a strategy by type. It returns an error when the type is not
// registered.
func (r *Registry) Get(t domain.StrategyType) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[t]
	if !ok {
		return nil, fmt.Errorf("strategy %q: not registered", t)
	}
	return s, nil
}

// List returns all registered strategy types in sorted order.
func (r *Registry) List() []domain.StrategyType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.StrategyType, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
