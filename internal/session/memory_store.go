package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
}

// NewMemoryStore is a single-node Store for tests and local dev.
// Records round-trip through JSON so it exercises the same encoding
// as the redis store.
func NewMemoryStore() Store {
	return &memoryStore{records: map[string]memoryEntry{}}
}

func (s *memoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	entry, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.records, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	var record Record
	if err := json.Unmarshal(entry.raw, &record); err != nil {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *memoryStore) Save(_ context.Context, record *Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	entry := memoryEntry{raw: raw}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.records[record.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}
