package memory

import (
	"context"
	"sync"

	"quiz-gate-service/internal/domain"
)

// ProgressStore keeps user progress in a map.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[string]domain.Progress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[string]domain.Progress)}
}

// Get returns the zero Progress for unknown users.
func (s *ProgressStore) Get(_ context.Context, userID string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress[userID], nil
}

func (s *ProgressStore) Set(_ context.Context, userID string, progress domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[userID] = progress
	return nil
}
