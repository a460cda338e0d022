package memory

import (
	"context"
	"fmt"
	"sync"

	"casevault/pkg/domain"
	"casevault/pkg/platform/sentinel"
)

// InMemoryStore is a process-local evidence catalogue. It only tracks which
// ids exist; payloads live elsewhere.
type InMemoryStore struct {
	mu  sync.RWMutex
	ids map[domain.ResourceID]struct{}
}

// New returns a store seeded with ids.
func New(ids ...domain.ResourceID) *InMemoryStore {
	s := &InMemoryStore{ids: make(map[domain.ResourceID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add registers an id.
func (s *InMemoryStore) Add(id domain.ResourceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *InMemoryStore) Exists(_ context.Context, id domain.ResourceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok, nil
}

func (s *InMemoryStore) Remove(_ context.Context, id domain.ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return fmt.Errorf("evidence %d: %w", id, sentinel.ErrNotFound)
	}
	delete(s.ids, id)
	return nil
}
