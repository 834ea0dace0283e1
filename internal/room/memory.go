// internal/room/memory.go
//
// In-memory implementation of the Store interface.
// This is a lightweight persistence layer used in development/testing,
// or when durability is not required.
//
// Characteristics:
//   - Stores raw byte values keyed by string in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - TTLs are honored lazily: expired entries report ErrNotFound on Get.
//   - State is lost when the process restarts.

package room

import (
	"context"
	"sync"
	"time"
)

// entry pairs a value with its optional expiry deadline.
type entry struct {
	value    []byte
	deadline time.Time // zero means no expiry
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu   sync.RWMutex // guards data map
	data map[string]entry
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{data: make(map[string]entry)}
}

// Get returns the value at key, treating passed deadlines as absence.
func (m *memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set writes the value at key, clearing any previous expiry.
func (m *memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = entry{value: v}
	return nil
}

// Expire sets the key's deadline relative to now. A non-positive ttl
// drops the key immediately.
func (m *memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return ErrNotFound
	}
	if ttl <= 0 {
		delete(m.data, key)
		return nil
	}
	e.deadline = time.Now().Add(ttl)
	m.data[key] = e
	return nil
}
