package collector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/willoughbyrm/lighthouse/internal/gatherer"
)

// Registry maps collector names to collectors.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]gatherer.Collector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]gatherer.Collector)}
}

// FromSpecs builds a registry holding one CommandCollector per spec.
func FromSpecs(specs []Spec) (*Registry, error) {
	r := NewRegistry()
	for _, spec := range specs {
		c, err := New(spec)
		if err != nil {
			return nil, err
		}
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c under its Meta name.
func (r *Registry) Register(c gatherer.Collector) error {
	name := c.Meta().Name
	if name == "" {
		return ErrMissingName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collectors[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCollector, name)
	}
	r.collectors[name] = c
	return nil
}

// Get returns the collector registered under name.
func (r *Registry) Get(name string) (gatherer.Collector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollector, name)
	}
	return c, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered collectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collectors)
}
