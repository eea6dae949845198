package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store. It keeps the encoded
// halves so a load goes through the same codec as the durable stores.
type MemoryStore struct {
	mu        sync.Mutex
	records   []byte
	processed []byte
	saves     int
}

// compile-time check
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil && m.processed == nil {
		return nil, nil
	}
	return decodeSnapshot(m.records, m.processed)
}

func (m *MemoryStore) Save(_ context.Context, s *Snapshot) error {
	records, processed, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.processed = processed
	m.saves++
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.processed = nil
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Exists reports whether a checkpoint is currently held.
func (m *MemoryStore) Exists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records != nil || m.processed != nil
}
