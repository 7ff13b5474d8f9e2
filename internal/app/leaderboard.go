package app

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"normalz-service/internal/domain"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_leaderboard.go normalz-service/internal/app Leaderboard

// Leaderboard is the score collaborator (submitScore / showLeaderboard).
type Leaderboard interface {
	SubmitScore(ctx context.Context, playerID string, value int, leaderboardID string) error
	Top(ctx context.Context, leaderboardID string, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardGate forwards to a Leaderboard only once an authentication handshake
// has succeeded. Until then submissions are dropped and reads report domain.ErrNotAuthenticated.
type LeaderboardGate struct {
	next          Leaderboard
	authenticated atomic.Bool
}

func NewLeaderboardGate(next Leaderboard) *LeaderboardGate {
	return &LeaderboardGate{next: next}
}

// IsAuthenticated reports whether the handshake has completed.
func (g *LeaderboardGate) IsAuthenticated() bool {
	return g.authenticated.Load()
}

// MarkAuthenticated opens the gate.
func (g *LeaderboardGate) MarkAuthenticated() {
	g.authenticated.Store(true)
}

// Authenticate runs handshake in the background, retrying every interval until it
// succeeds or ctx is done. The returned channel closes when the goroutine exits.
func (g *LeaderboardGate) Authenticate(ctx context.Context, interval time.Duration, handshake func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			err := handshake(ctx)
			if err == nil {
				g.MarkAuthenticated()
				log.Info("leaderboard authenticated")
				return
			}
			log.WithError(err).Warn("leaderboard authentication failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()
	return done
}

func (g *LeaderboardGate) SubmitScore(ctx context.Context, playerID string, value int, leaderboardID string) error {
	if !g.IsAuthenticated() {
		log.WithFields(log.Fields{"player_id": playerID, "leaderboard_id": leaderboardID, "score": value}).
			Warn("player not authenticated, score not submitted")
		return nil
	}
	return g.next.SubmitScore(ctx, playerID, value, leaderboardID)
}

func (g *LeaderboardGate) Top(ctx context.Context, leaderboardID string, limit int) ([]domain.LeaderboardEntry, error) {
	if !g.IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	return g.next.Top(ctx, leaderboardID, limit)
}
