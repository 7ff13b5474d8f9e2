package memory

import (
	"context"
	"sync"

	"normalz-service/internal/domain"
)

// StreakStore is an in-memory implementation of app.StreakRepository.
type StreakStore struct {
	mu     sync.Mutex
	states map[string]domain.StreakState
}

func NewStreakStore() *StreakStore {
	return &StreakStore{states: make(map[string]domain.StreakState)}
}

func (s *StreakStore) Get(_ context.Context, playerID string) (domain.StreakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[playerID], nil
}

// Update holds the store lock for the duration of fn; fn must not call back into the store.
func (s *StreakStore) Update(_ context.Context, playerID string, fn func(*domain.StreakState) error) (domain.StreakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[playerID]
	if err := fn(&state); err != nil {
		return domain.StreakState{}, err
	}
	s.states[playerID] = state
	return state, nil
}
