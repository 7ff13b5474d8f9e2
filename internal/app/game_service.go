package app

import (
	"context"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"normalz-service/internal/domain"
)

// PoolInvalidator is implemented by active-pool caches that must drop their view
// when a question is created.
type PoolInvalidator interface {
	Invalidate()
}

// GameService contains the fetch-question and submit-answer use cases.
type GameService struct {
	questions QuestionRepository
	selector  *Selector
	streaks   *StreakService
	pool      PoolInvalidator
}

// NewGameService wires the use cases. streaks may be nil, in which case submissions
// carrying a player id are resolved but not tracked server-side.
func NewGameService(questions QuestionRepository, selector *Selector, streaks *StreakService) *GameService {
	return &GameService{questions: questions, selector: selector, streaks: streaks}
}

// WithPoolInvalidator registers the cache to refresh after CreateQuestion.
func (s *GameService) WithPoolInvalidator(pool PoolInvalidator) *GameService {
	s.pool = pool
	return s
}

// NextQuestion picks an active question, avoiding lastServed when possible, and
// returns its current tally snapshot.
func (s *GameService) NextQuestion(ctx context.Context, lastServed string) (domain.Question, error) {
	id, err := s.selector.Next(ctx, lastServed)
	if err != nil {
		return domain.Question{}, err
	}
	return s.questions.Get(ctx, id)
}

// Question returns the snapshot for a known identifier.
func (s *GameService) Question(ctx context.Context, questionID string) (domain.Question, error) {
	if questionID == "" {
		return domain.Question{}, errors.WithDetails(domain.ErrInvalidRequest, "reason", "missing question id")
	}
	return s.questions.Get(ctx, questionID)
}

// CreateQuestion adds a question to the active pool.
func (s *GameService) CreateQuestion(ctx context.Context, prompt string, options []string) (domain.Question, error) {
	q, err := s.questions.Create(ctx, prompt, options)
	if err != nil {
		return domain.Question{}, err
	}
	if s.pool != nil {
		s.pool.Invalidate()
	}
	log.WithFields(log.Fields{"question_id": q.ID, "options": len(q.Options)}).Info("question created")
	return q, nil
}

// SubmitAnswer applies the vote, resolves it against the post-vote tally and, when
// a player id is present, advances that player's streak once per submission id. The returned snapshot is
// authoritative; clients never merge the vote locally.
func (s *GameService) SubmitAnswer(ctx context.Context, sub domain.Submission) (domain.SubmitResult, error) {
	if sub.QuestionID == "" || sub.SelectedOption == "" {
		return domain.SubmitResult{}, errors.WithDetails(domain.ErrInvalidRequest, "reason", "questionId and selectedOption are required")
	}

	// A started mutation always completes, even if the caller stops waiting.
	receipt, err := s.questions.ApplyVote(context.WithoutCancel(ctx), domain.Vote{
		QuestionID: sub.QuestionID,
		Option:     sub.SelectedOption,
		VoterID:    sub.PlayerID,
		Token:      sub.SubmissionID,
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	result := domain.SubmitResult{
		Outcome:  Resolve(receipt.Question, sub.SelectedOption),
		Question: receipt.Question,
		Replayed: receipt.Replayed,
	}

	if sub.PlayerID == "" || s.streaks == nil {
		return result, nil
	}

	// Keyed by submission id so a replay still records an outcome whose first
	// application failed after the vote committed.
	update, _, err := s.streaks.RecordSubmission(context.WithoutCancel(ctx), sub.PlayerID, sub.SubmissionID, result.Outcome)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	result.Streak = &update
	return result, nil
}
