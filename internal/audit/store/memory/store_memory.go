package memory

import (
	"context"
	"sort"
	"sync"

	"casevault/internal/audit"
	"casevault/pkg/domain"
)

// InMemoryStore keeps entries in insertion order behind a RWMutex. Entries are
// copied in and out so callers cannot mutate stored rows.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	if entry.ActorID != nil {
		actor := *entry.ActorID
		entry.ActorID = &actor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByTarget(_ context.Context, targetID domain.ResourceID) ([]audit.Entry, error) {
	return s.filter(func(e audit.Entry) bool { return e.TargetID == targetID }), nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID domain.ActorID) ([]audit.Entry, error) {
	return s.filter(func(e audit.Entry) bool { return e.ActorID != nil && *e.ActorID == actorID }), nil
}

// ListAll returns every entry, most recent first.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Entry, error) {
	return s.filter(func(audit.Entry) bool { return true }), nil
}

// filter walks newest-to-oldest so equal timestamps keep reverse insertion order.
func (s *InMemoryStore) filter(match func(audit.Entry) bool) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Entry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !match(e) {
			continue
		}
		if e.ActorID != nil {
			actor := *e.ActorID
			e.ActorID = &actor
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
