package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/im7mortal/kmutex"

	"casevault/internal/deletion"
	"casevault/pkg/domain"
	"casevault/pkg/platform/sentinel"
)

// InMemoryStore keeps deletion records in process memory. Writers serialize
// per resource id through a keyed mutex so unrelated deletions never contend.
// Records do not survive a restart.
type InMemoryStore struct {
	records sync.Map // domain.ResourceID -> deletion.State
	locks   *kmutex.Kmutex
}

func New() *InMemoryStore {
	return &InMemoryStore{locks: kmutex.New()}
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ResourceID) (deletion.State, error) {
	v, ok := s.records.Load(id)
	if !ok {
		return deletion.State{}, fmt.Errorf("deletion state %d: %w", id, sentinel.ErrNotFound)
	}
	return v.(deletion.State), nil
}

func (s *InMemoryStore) Open(_ context.Context, state deletion.State) error {
	s.locks.Lock(state.ResourceID)
	defer s.locks.Unlock(state.ResourceID)

	if v, ok := s.records.Load(state.ResourceID); ok && v.(deletion.State).Phase == deletion.PhaseInProgress {
		return fmt.Errorf("deletion state %d: %w", state.ResourceID, sentinel.ErrInvalidState)
	}
	s.records.Store(state.ResourceID, state)
	return nil
}

func (s *InMemoryStore) Transition(_ context.Context, id domain.ResourceID, from deletion.Phase, mutate func(*deletion.State)) (deletion.State, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	v, ok := s.records.Load(id)
	if !ok {
		return deletion.State{}, fmt.Errorf("deletion state %d: %w", id, sentinel.ErrNotFound)
	}
	current := v.(deletion.State)
	if current.Phase != from {
		return current, fmt.Errorf("deletion state %d is %s, not %s: %w", id, current.Phase, from, sentinel.ErrConflict)
	}
	next := current
	mutate(&next)
	next.ResourceID = id
	s.records.Store(id, next)
	return next, nil
}

func (s *InMemoryStore) DeleteTerminal(_ context.Context, id domain.ResourceID) error {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	v, ok := s.records.Load(id)
	if !ok {
		return fmt.Errorf("deletion state %d: %w", id, sentinel.ErrNotFound)
	}
	if !v.(deletion.State).Phase.IsTerminal() {
		return fmt.Errorf("deletion state %d: %w", id, sentinel.ErrInvalidState)
	}
	s.records.Delete(id)
	return nil
}
