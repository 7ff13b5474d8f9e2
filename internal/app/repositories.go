package app

import (
	"context"

	"normalz-service/internal/domain"
)

// QuestionRepository abstracts where questions and their tallies live (in-memory, Redis, Postgres).
// ApplyVote must be atomic per question: concurrent votes are never lost and no reader
// ever sees a partially applied vote.
type QuestionRepository interface {
	Get(ctx context.Context, questionID string) (domain.Question, error)
	Create(ctx context.Context, prompt string, options []string) (domain.Question, error)
	ActiveIDs(ctx context.Context) ([]string, error)
	ApplyVote(ctx context.Context, vote domain.Vote) (domain.VoteReceipt, error)
}

// StreakRepository persists per-player streak state. Update runs fn against the
// current state (zero for unknown players) and stores the result atomically.
type StreakRepository interface {
	Get(ctx context.Context, playerID string) (domain.StreakState, error)
	Update(ctx context.Context, playerID string, fn func(*domain.StreakState) error) (domain.StreakState, error)
}
