package credentials

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps credentials in process. It backs tests and hosts that
// inject credentials programmatically.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates a store seeded with entries.
func NewMemoryStore(entries map[string]Entry) *MemoryStore {
	m := &MemoryStore{entries: make(map[string]Entry, len(entries))}
	for id, e := range entries {
		m.entries[id] = e
	}
	return m
}

// Name implements Store.
func (m *MemoryStore) Name() string { return "memory" }

// Put adds or replaces an entry.
func (m *MemoryStore) Put(id string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = e
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrCredentialNotFound)
	}
	return &e, nil
}
