package asset

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps asset names to descriptors.
//
// A Registry is built once at startup and passed by reference; there is no
// package-level registration of assets.
type Registry struct {
	mu     sync.RWMutex
	assets map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{assets: make(map[string]Descriptor)}
}

// Register adds d. It rejects invalid descriptors and duplicate names.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.assets[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAsset, d.Name)
	}
	r.assets[d.Name] = d
	return nil
}

// MustRegister is Register for static setups; it panics on error.
func (r *Registry) MustRegister(ds ...Descriptor) *Registry {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(fmt.Sprintf("register asset: %v", err))
		}
	}
	return r
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.assets[name]
	return d, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// Names returns all asset names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.assets))
	for n := range r.assets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns all descriptors sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.assets))
	for _, d := range r.assets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
