package redis

import (
	"context"
	"encoding/json"

	"emperror.dev/errors"
	"github.com/redis/go-redis/v9"

	"normalz-service/internal/domain"
)

// StreakStore persists streak state as one JSON value per player and serialises
// updates with WATCH/MULTI.
type StreakStore struct {
	client     *redis.Client
	maxRetries int
}

func NewStreakStore(client *redis.Client, maxRetries int) *StreakStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxVoteRetries
	}
	return &StreakStore{client: client, maxRetries: maxRetries}
}

func (s *StreakStore) Get(ctx context.Context, playerID string) (domain.StreakState, error) {
	return readState(ctx, s.client, s.key(playerID))
}

func (s *StreakStore) Update(ctx context.Context, playerID string, fn func(*domain.StreakState) error) (domain.StreakState, error) {
	key := s.key(playerID)
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var state domain.StreakState
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := readState(ctx, tx, key)
			if err != nil {
				return err
			}
			if err := fn(&current); err != nil {
				return err
			}
			raw, err := json.Marshal(current)
			if err != nil {
				return errors.WrapIf(err, "marshal streak")
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, raw, 0)
				return nil
			})
			state = current
			return err
		}, key)

		if err == nil {
			return state, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.StreakState{}, errors.WrapIf(err, "update streak")
	}
	return domain.StreakState{}, errors.WithDetails(domain.ErrContention, "player_id", playerID, "attempts", s.maxRetries)
}

func (s *StreakStore) key(playerID string) string {
	return "normalz:streak:" + playerID
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readState(ctx context.Context, c stringGetter, key string) (domain.StreakState, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StreakState{}, nil
		}
		return domain.StreakState{}, errors.WrapIf(err, "get streak")
	}
	var state domain.StreakState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.StreakState{}, errors.WrapIf(err, "unmarshal streak")
	}
	return state, nil
}
