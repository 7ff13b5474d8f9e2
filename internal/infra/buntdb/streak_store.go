// Package buntdb persists a player's streak state in a local key-value file, the way
// a game client keeps its own scores between launches.
package buntdb

import (
	"context"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/tidwall/buntdb"

	"normalz-service/internal/domain"
)

const (
	keyAllTime     = "allTimeHighScore"
	keyDaily       = "dailyHighScore"
	keyWeekly      = "weeklyHighScore"
	keyCurrent     = "currentStreak"
	keyDailyReset  = "lastDailyResetDate"
	keyWeeklyReset = "lastWeeklyResetDate"
)

// StreakStore implements app.StreakRepository on top of buntdb. Each field lives
// under its own key, namespaced by player.
type StreakStore struct {
	db *buntdb.DB
}

// Open opens (or creates) the store at path. Use ":memory:" for a throwaway store.
func Open(path string) (*StreakStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "open local store", "path", path)
	}
	return &StreakStore{db: db}, nil
}

func (s *StreakStore) Close() error {
	return s.db.Close()
}

func (s *StreakStore) Get(_ context.Context, playerID string) (domain.StreakState, error) {
	var state domain.StreakState
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		state, err = read(tx, playerID)
		return err
	})
	return state, err
}

// Update runs fn inside a single read-write transaction; buntdb allows one writer at a time.
func (s *StreakStore) Update(_ context.Context, playerID string, fn func(*domain.StreakState) error) (domain.StreakState, error) {
	var state domain.StreakState
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var err error
		state, err = read(tx, playerID)
		if err != nil {
			return err
		}
		if err := fn(&state); err != nil {
			return err
		}
		return write(tx, playerID, state)
	})
	if err != nil {
		return domain.StreakState{}, err
	}
	return state, nil
}

func read(tx *buntdb.Tx, playerID string) (domain.StreakState, error) {
	var (
		state domain.StreakState
		err   error
	)
	ints := map[string]*int{
		keyAllTime: &state.AllTime,
		keyDaily:   &state.Daily,
		keyWeekly:  &state.Weekly,
		keyCurrent: &state.Current,
	}
	for name, dst := range ints {
		if *dst, err = getInt(tx, key(playerID, name)); err != nil {
			return domain.StreakState{}, err
		}
	}
	if state.LastDailyReset, err = getTime(tx, key(playerID, keyDailyReset)); err != nil {
		return domain.StreakState{}, err
	}
	if state.LastWeeklyReset, err = getTime(tx, key(playerID, keyWeeklyReset)); err != nil {
		return domain.StreakState{}, err
	}
	return state, nil
}

func write(tx *buntdb.Tx, playerID string, state domain.StreakState) error {
	values := map[string]string{
		keyAllTime:     strconv.Itoa(state.AllTime),
		keyDaily:       strconv.Itoa(state.Daily),
		keyWeekly:      strconv.Itoa(state.Weekly),
		keyCurrent:     strconv.Itoa(state.Current),
		keyDailyReset:  formatTime(state.LastDailyReset),
		keyWeeklyReset: formatTime(state.LastWeeklyReset),
	}
	for name, v := range values {
		if _, _, err := tx.Set(key(playerID, name), v, nil); err != nil {
			return errors.WrapIfWithDetails(err, "write local score", "key", name)
		}
	}
	return nil
}

func getInt(tx *buntdb.Tx, k string) (int, error) {
	raw, err := tx.Get(k)
	if errors.Is(err, buntdb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.WithDetails(domain.ErrIntegrity, "key", k, "value", raw)
	}
	return n, nil
}

func getTime(tx *buntdb.Tx, k string) (time.Time, error) {
	raw, err := tx.Get(k)
	if errors.Is(err, buntdb.ErrNotFound) || raw == "" {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errors.WithDetails(domain.ErrIntegrity, "key", k, "value", raw)
	}
	return ts, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func key(playerID, name string) string {
	return "player:" + playerID + ":" + name
}
