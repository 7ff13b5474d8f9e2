package app

import (
	"context"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"normalz-service/internal/domain"
)

// LeaderboardIDs maps each high-water mark to its leaderboard.
type LeaderboardIDs map[domain.Period]string

// DefaultLeaderboardIDs mirrors the identifiers registered for the game.
func DefaultLeaderboardIDs() LeaderboardIDs {
	return LeaderboardIDs{
		domain.PeriodAllTime: "allTimeLeaderboardID",
		domain.PeriodDaily:   "dailyLeaderboardID",
		domain.PeriodWeekly:  "weeklyLeaderboardID",
	}
}

// StreakService keeps persisted streak state per player and reports mark changes
// to the leaderboard.
type StreakService struct {
	repo        StreakRepository
	tracker     *StreakTracker
	leaderboard Leaderboard
	boards      LeaderboardIDs
	now         func() time.Time
}

func NewStreakService(repo StreakRepository, tracker *StreakTracker, leaderboard Leaderboard, boards LeaderboardIDs) *StreakService {
	return NewStreakServiceWithClock(repo, tracker, leaderboard, boards, time.Now)
}

// NewStreakServiceWithClock allows deterministic reset boundaries in tests.
func NewStreakServiceWithClock(repo StreakRepository, tracker *StreakTracker, leaderboard Leaderboard, boards LeaderboardIDs, now func() time.Time) *StreakService {
	if boards == nil {
		boards = DefaultLeaderboardIDs()
	}
	return &StreakService{repo: repo, tracker: tracker, leaderboard: leaderboard, boards: boards, now: now}
}

// Get returns the stored state without applying resets.
func (s *StreakService) Get(ctx context.Context, playerID string) (domain.StreakState, error) {
	if playerID == "" {
		return domain.StreakState{}, errors.WithDetails(domain.ErrInvalidRequest, "reason", "missing player id")
	}
	return s.repo.Get(ctx, playerID)
}

// Record applies pending resets and then the outcome in a single atomic update.
func (s *StreakService) Record(ctx context.Context, playerID string, outcome domain.Outcome) (domain.StreakUpdate, error) {
	update, _, err := s.RecordSubmission(ctx, playerID, "", outcome)
	return update, err
}

// RecordSubmission is Record keyed by a submission id: an id already applied to
// the player's streak leaves the state untouched and reports applied=false.
// An empty id is always applied.
func (s *StreakService) RecordSubmission(ctx context.Context, playerID, submissionID string, outcome domain.Outcome) (update domain.StreakUpdate, applied bool, err error) {
	if playerID == "" {
		return domain.StreakUpdate{}, false, errors.WithDetails(domain.ErrInvalidRequest, "reason", "missing player id")
	}

	now := s.now()
	state, err := s.repo.Update(ctx, playerID, func(state *domain.StreakState) error {
		if submissionID != "" && state.HasRecorded(submissionID) {
			applied = false
			return nil
		}
		next, resets := s.tracker.CheckResets(*state, now)
		next, update = s.tracker.Record(next, outcome)
		update.Resets = resets
		if submissionID != "" {
			next = next.WithRecorded(submissionID)
		}
		update.State = next
		applied = true
		*state = next
		return nil
	})
	if err != nil {
		return domain.StreakUpdate{}, false, errors.WrapIf(err, "record streak")
	}
	if !applied {
		return domain.StreakUpdate{State: state}, false, nil
	}

	s.publish(ctx, playerID, update.State, update.Resets, update.Raised)
	return update, true, nil
}

// CheckResets is run whenever a client comes to the foreground.
func (s *StreakService) CheckResets(ctx context.Context, playerID string) (domain.StreakUpdate, error) {
	if playerID == "" {
		return domain.StreakUpdate{}, errors.WithDetails(domain.ErrInvalidRequest, "reason", "missing player id")
	}

	var resets []domain.Period
	now := s.now()
	state, err := s.repo.Update(ctx, playerID, func(state *domain.StreakState) error {
		*state, resets = s.tracker.CheckResets(*state, now)
		return nil
	})
	if err != nil {
		return domain.StreakUpdate{}, errors.WrapIf(err, "check streak resets")
	}

	s.publish(ctx, playerID, state, resets, nil)
	return domain.StreakUpdate{State: state, Resets: resets}, nil
}

// publish submits reset marks (as zero) and raised marks (as their new value).
// Leaderboard failures are logged; the persisted state stays authoritative.
func (s *StreakService) publish(ctx context.Context, playerID string, state domain.StreakState, resets, raised []domain.Period) {
	for _, p := range resets {
		s.submit(ctx, playerID, 0, p)
	}
	for _, p := range raised {
		s.submit(ctx, playerID, state.Mark(p), p)
	}
}

func (s *StreakService) submit(ctx context.Context, playerID string, value int, p domain.Period) {
	if s.leaderboard == nil {
		return
	}
	boardID := s.boards[p]
	if err := s.leaderboard.SubmitScore(ctx, playerID, value, boardID); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"player_id":      playerID,
			"leaderboard_id": boardID,
			"score":          value,
		}).Error("submit score failed")
	}
}
