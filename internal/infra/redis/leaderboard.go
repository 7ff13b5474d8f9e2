package redis

import (
	"context"
	"sort"
	"strconv"

	"emperror.dev/errors"
	"github.com/redis/go-redis/v9"

	"normalz-service/internal/domain"
)

// Leaderboard stores one sorted set per leaderboard id; members are player ids.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func (l *Leaderboard) SubmitScore(ctx context.Context, playerID string, value int, leaderboardID string) error {
	err := l.client.ZAdd(ctx, l.key(leaderboardID), redis.Z{Score: float64(value), Member: playerID}).Err()
	return errors.WrapIf(err, "submit score")
}

// Top ranks by score descending and breaks ties by player id ascending. ZREVRANGE
// orders equal scores by member descending, so members tied at the cut-off are
// re-read in lexical order before ranking.
func (l *Leaderboard) Top(ctx context.Context, leaderboardID string, limit int) ([]domain.LeaderboardEntry, error) {
	key := l.key(leaderboardID)
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	rows, err := l.client.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, errors.WrapIf(err, "read leaderboard")
	}

	if limit > 0 && len(rows) == limit {
		cut := rows[len(rows)-1].Score
		bound := strconv.FormatFloat(cut, 'f', -1, 64)
		tied, err := l.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: bound, Max: bound}).Result()
		if err != nil {
			return nil, errors.WrapIf(err, "read leaderboard ties")
		}
		above := rows[:0]
		for _, row := range rows {
			if row.Score > cut {
				above = append(above, row)
			}
		}
		for _, member := range tied {
			if len(above) == limit {
				break
			}
			above = append(above, redis.Z{Score: cut, Member: member})
		}
		rows = above
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		member, _ := row.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{PlayerID: member, Score: int(row.Score)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Ping is used as the authentication handshake for the leaderboard gate.
func (l *Leaderboard) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Leaderboard) key(leaderboardID string) string {
	return "normalz:leaderboard:" + leaderboardID
}
