package chathistory

import (
	"context"
	"sync"
)

// KV is the durable key-value medium threads are persisted to. It
// mirrors the contract of browser local storage: a flat, shared,
// unsynchronized string-to-string space. Implementations must be safe
// for concurrent use from a single process; cross-process writers race
// and the last writer wins.
type KV interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, overwriting any previous value.
	// It returns ErrQuotaExceeded when the medium is out of space.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key currently held by the medium, including
	// keys written by other users of the same space.
	Keys(ctx context.Context) ([]string, error)
}

// MemoryKV is an in-memory KV with an optional capacity.
type MemoryKV struct {
	mu       sync.RWMutex
	values   map[string]string
	capacity int64
}

var _ KV = (*MemoryKV)(nil)

// NewMemoryKV creates an unbounded in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

// NewBoundedMemoryKV creates an in-memory KV that rejects writes once
// the summed length of keys and values would exceed capacity bytes.
// This reproduces browser quota behavior for tests.
func NewBoundedMemoryKV(capacity int64) *MemoryKV {
	return &MemoryKV{values: make(map[string]string), capacity: capacity}
}

// Get returns the value stored under key.
func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity > 0 {
		usage := int64(0)
		for k, v := range m.values {
			if k == key {
				continue
			}
			usage += int64(len(k) + len(v))
		}
		if usage+int64(len(key)+len(value)) > m.capacity {
			return ErrQuotaExceeded
		}
	}

	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Keys returns every stored key.
func (m *MemoryKV) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys, nil
}
