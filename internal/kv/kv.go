// Package kv provides the key-value blob persistence used by the candidate
// store and the settings model.
package kv

import (
	"context"
	"errors"
	"sync"
)

// Keys used by the engine.
const (
	KeyCandidates = "candidates"
	KeySettings   = "aiSettings"
)

// ErrPersistence marks every failure reported by a Store backend.
var ErrPersistence = errors.New("persistence failure")

// Store reads and writes serialized blobs by key. Read reports ok=false for
// a key that was never written.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
}

// MemoryStore keeps blobs in process memory. Used for tests and for the
// "memory" storage backend.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (m *MemoryStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStore) Write(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items[key] = stored
	return nil
}
