package deadletter

import (
	"sync"
)

// MemoryStore keeps dead letters in memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int // id -> position in records
	closed  bool
}

// NewMemoryStore creates a new in-memory dead-letter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(rec Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrStoreClosed
	}

	rec.fill()
	rec.Args = append([]byte(nil), rec.Args...)

	if i, ok := m.index[rec.ID]; ok {
		m.records[i] = rec
		return rec.ID, nil
	}
	m.index[rec.ID] = len(m.records)
	m.records = append(m.records, rec)
	return rec.ID, nil
}

// Get implements Store.
func (m *MemoryStore) Get(id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Record{}, ErrStoreClosed
	}

	i, ok := m.index[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(m.records[i]), nil
}

// List implements Store.
func (m *MemoryStore) List(key string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := []Record{}
	for _, rec := range m.records {
		if key == "" || rec.Key == key {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	i, ok := m.index[id]
	if !ok {
		return nil
	}
	m.records = append(m.records[:i], m.records[i+1:]...)
	delete(m.index, id)
	for j := i; j < len(m.records); j++ {
		m.index[m.records[j].ID] = j
	}
	return nil
}

// Count implements Store.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.records), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	m.index = nil
	return nil
}

func copyRecord(rec Record) Record {
	rec.Args = append([]byte(nil), rec.Args...)
	return rec
}
