package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe map-based store for tests and local dev.
// Contents are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, digest string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[digest]
	if !ok {
		return nil, nil
	}

	// Copy so callers cannot mutate the stored payload.
	payload := make([]byte, len(entry.Payload))
	copy(payload, entry.Payload)
	return &Entry{Digest: entry.Digest, Payload: payload, CreatedAt: entry.CreatedAt}, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := make([]byte, len(entry.Payload))
	copy(payload, entry.Payload)

	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	s.data[entry.Digest] = &Entry{Digest: entry.Digest, Payload: payload, CreatedAt: created}
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*Entry)
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
