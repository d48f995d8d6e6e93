package progress

import (
	"context"
	"sync"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]model.SavedProgress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: map[uuid.UUID]model.SavedProgress{}}
}

func (s *MemoryStore) Load(_ context.Context, userID uuid.UUID) (*model.SavedProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.snapshots[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *MemoryStore) Save(_ context.Context, userID uuid.UUID, progress *model.SavedProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[userID] = *progress
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, userID)
	return nil
}
