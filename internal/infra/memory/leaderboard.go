package memory

import (
	"context"
	"sort"
	"sync"

	"normalz-service/internal/domain"
)

// Leaderboard keeps the latest submitted score per player for each leaderboard id.
type Leaderboard struct {
	mu     sync.RWMutex
	boards map[string]map[string]int
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{boards: make(map[string]map[string]int)}
}

func (l *Leaderboard) SubmitScore(_ context.Context, playerID string, value int, leaderboardID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	board, ok := l.boards[leaderboardID]
	if !ok {
		board = make(map[string]int)
		l.boards[leaderboardID] = board
	}
	board[playerID] = value
	return nil
}

// Top ranks by score desc, then player id. limit <= 0 returns every entry.
func (l *Leaderboard) Top(_ context.Context, leaderboardID string, limit int) ([]domain.LeaderboardEntry, error) {
	l.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(l.boards[leaderboardID]))
	for playerID, score := range l.boards[leaderboardID] {
		entries = append(entries, domain.LeaderboardEntry{PlayerID: playerID, Score: score})
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
