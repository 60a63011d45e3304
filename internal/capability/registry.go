// Package capability is the boundary between the cognitive core and the
// integrations that perceive and act on its behalf.
package capability

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrDuplicate         = errors.New("capability already registered")
)

// Factory builds a capability instance bound to one agent.
type Factory func(agent domain.Agent) (domain.Capability, error)

// Registry maps capability names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.factories[name] = f
	return nil
}

// Names lists registered capabilities in name order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolve instantiates every capability the agent has enabled. Names that are
// not registered are reported together in one error.
func (r *Registry) Resolve(agent domain.Agent) (map[string]domain.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.Capability, len(agent.Capabilities))
	var errs []error
	for _, name := range agent.Capabilities {
		f, ok := r.factories[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownCapability, name))
			continue
		}
		c, err := f(agent)
		if err != nil {
			errs = append(errs, fmt.Errorf("build capability %s: %w", name, err))
			continue
		}
		out[name] = c
	}
	return out, errors.Join(errs...)
}
