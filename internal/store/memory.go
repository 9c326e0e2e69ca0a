package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sotags/sotags-api/internal/tags"
)

// MemoryStore keeps the collection in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]tags.Tag
	nextID int64
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName: make(map[string]tags.Tag),
		nextID: 1,
	}
}

// newMemoryStoreFrom seeds a store with previously persisted rows
func newMemoryStoreFrom(collection []tags.Tag) *MemoryStore {
	m := NewMemoryStore()
	for _, t := range collection {
		m.byName[t.Name] = t
		if t.ID >= m.nextID {
			m.nextID = t.ID + 1
		}
	}
	return m
}

// ReadAll implements Store
func (m *MemoryStore) ReadAll(_ context.Context) ([]tags.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return m.snapshot(), nil
}

// SaveAll implements Store
func (m *MemoryStore) SaveAll(_ context.Context, collection []tags.Tag) ([]tags.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	m.upsert(collection)
	return m.snapshot(), nil
}

// DeleteAll implements Store
func (m *MemoryStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.byName = make(map[string]tags.Tag)
	return nil
}

// Count implements Store
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return len(m.byName), nil
}

// Ping implements Store
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// upsert must be called with the write lock held
func (m *MemoryStore) upsert(collection []tags.Tag) {
	for _, t := range collection {
		if existing, ok := m.byName[t.Name]; ok {
			existing.Count = t.Count
			existing.SharePercent = t.SharePercent
			m.byName[t.Name] = existing
			continue
		}
		t.ID = m.nextID
		m.nextID++
		m.byName[t.Name] = t
	}
}

// snapshot must be called with the lock held
func (m *MemoryStore) snapshot() []tags.Tag {
	out := make([]tags.Tag, 0, len(m.byName))
	for _, t := range m.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
