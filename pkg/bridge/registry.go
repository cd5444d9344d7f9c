package bridge

import (
	"fmt"
	"sync"
)

// Registry is an ordered table of bridge drivers. Drivers are registered at
// startup; after that the table is only read.
type Registry struct {
	mu        sync.RWMutex
	drivers   []Driver
	byName    map[string]int
	overrides map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]int),
		overrides: make(map[string]bool),
	}
}

// Default is the process-wide registry populated by drivers.Register.
var Default = NewRegistry()

// Register appends d. It panics if a driver with the same name exists.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[d.Name()]; exists {
		panic(fmt.Sprintf("bridge driver already registered: %q", d.Name()))
	}
	r.byName[d.Name()] = len(r.drivers)
	r.drivers = append(r.drivers, d)
}

// SetEnabled overrides the driver's own default enablement.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	r.overrides[name] = !enabled
	return nil
}

// ResetOverrides drops every SetEnabled override.
func (r *Registry) ResetOverrides() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = make(map[string]bool)
}

// Disabled reports whether d should be skipped, honouring overrides.
func (r *Registry) Disabled(d Driver) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if off, ok := r.overrides[d.Name()]; ok {
		return off
	}
	return d.Disabled()
}

// Lookup returns the driver registered under name.
func (r *Registry) Lookup(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.drivers[i], true
}

// Enumerate returns a snapshot of the registered drivers in registration order.
func (r *Registry) Enumerate() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Driver(nil), r.drivers...)
}

// Len reports the number of registered drivers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// ForEach calls fn for every driver in order and stops at the first error.
func (r *Registry) ForEach(fn func(Driver) error) error {
	for _, d := range r.Enumerate() {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
