package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"normalz-service/internal/domain"
)

// PoolSource lists the identifiers of active questions.
type PoolSource interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// Selector picks the next question uniformly at random, avoiding an immediate repeat
// when the pool has more than one question.
type Selector struct {
	pool PoolSource

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(pool PoolSource) *Selector {
	return NewSelectorWithSource(pool, rand.NewSource(time.Now().UnixNano()))
}

// NewSelectorWithSource is used by tests for reproducible picks.
func NewSelectorWithSource(pool PoolSource, src rand.Source) *Selector {
	return &Selector{pool: pool, rnd: rand.New(src)}
}

// Next returns an active question id other than exclude whenever possible.
func (s *Selector) Next(ctx context.Context, exclude string) (string, error) {
	ids, err := s.pool.ActiveIDs(ctx)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", domain.ErrPoolEmpty
	case 1:
		return ids[0], nil
	}

	candidates := ids
	if exclude != "" {
		candidates = make([]string, 0, len(ids))
		for _, id := range ids {
			if id != exclude {
				candidates = append(candidates, id)
			}
		}
	}

	s.mu.Lock()
	i := s.rnd.Intn(len(candidates))
	s.mu.Unlock()
	return candidates[i], nil
}
