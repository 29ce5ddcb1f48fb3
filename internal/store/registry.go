package store

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ ConditionRegistry = (*MemoryRegistry)(nil)

// MemoryRegistry is a process-lifetime ConditionRegistry. It backs the JSON
// storage configuration, where condition signals are not durable across
// restarts.
type MemoryRegistry struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{ids: make(map[string]struct{})}
}

// Add records the ID. Adding an existing ID is a no-op.
func (r *MemoryRegistry) Add(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
	return nil
}

// Contains reports whether the ID has been recorded.
func (r *MemoryRegistry) Contains(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok, nil
}
