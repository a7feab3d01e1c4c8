package warehouse

import (
	"context"
	"fmt"
	"sync"
)

// Factory constructs a fresh, unconnected Warehouse of a given kind.
type Factory func() Warehouse

// Registry maps a WarehouseKind to the factory that builds it, the way
// the teacher's adapter.Registry maps a database type to its adapter
// constructor.
type Registry struct {
	mu        sync.RWMutex
	factories map[WarehouseKind]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[WarehouseKind]Factory)}
}

// Register associates kind with factory. A later call for the same
// kind replaces the earlier one.
func (r *Registry) Register(kind WarehouseKind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Get returns the factory registered for kind, or an error if none
// has been registered.
func (r *Registry) Get(kind WarehouseKind) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	if !ok {
		return nil, NewConfigError("warehouse", "no backend registered for kind %q", kind)
	}
	return f, nil
}

// Connect builds a fresh Warehouse of cfg.Kind and connects it.
func (r *Registry) Connect(ctx context.Context, cfg ConnectionConfig) (Warehouse, error) {
	factory, err := r.Get(cfg.Kind)
	if err != nil {
		return nil, err
	}
	wh := factory()
	if err := wh.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connecting %s warehouse: %w", cfg.Kind, err)
	}
	return wh, nil
}

// Default is the process-wide registry backends register themselves
// into via init(), mirroring the teacher's package-level default
// adapter registry.
var Default = NewRegistry()

// Register adds factory to the default registry under kind.
func Register(kind WarehouseKind, factory Factory) {
	Default.Register(kind, factory)
}

// Connect builds and connects a Warehouse of cfg.Kind from the default
// registry.
func Connect(ctx context.Context, cfg ConnectionConfig) (Warehouse, error) {
	return Default.Connect(ctx, cfg)
}
