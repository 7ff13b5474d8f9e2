package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"

	"normalz-service/internal/domain"
)

// QuestionStore is an in-memory implementation of app.QuestionRepository.
// Votes on one question serialise on that question's mutex and publish a fresh
// immutable snapshot; readers load the snapshot without taking the lock.
type QuestionStore struct {
	now   func() time.Time
	newID func() string

	mu      sync.RWMutex
	entries map[string]*questionEntry
	order   []string
}

type questionEntry struct {
	mu       sync.Mutex
	snap     atomic.Pointer[domain.Question]
	receipts map[string]domain.Question
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		now:     time.Now,
		newID:   uuid.NewString,
		entries: make(map[string]*questionEntry),
	}
}

// Seed inserts fully formed questions, keeping their ids and tallies.
func (s *QuestionStore) Seed(questions ...domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		if err := domain.ValidateOptions(q.Options); err != nil {
			return err
		}
		q = q.Clone()
		if err := q.Validate(); err != nil {
			return err
		}
		entry := &questionEntry{receipts: make(map[string]domain.Question)}
		entry.snap.Store(&q)
		if _, exists := s.entries[q.ID]; !exists {
			s.order = append(s.order, q.ID)
		}
		s.entries[q.ID] = entry
	}
	return nil
}

func (s *QuestionStore) Create(_ context.Context, prompt string, options []string) (domain.Question, error) {
	q, err := domain.NewQuestion(s.newID(), prompt, options, s.now())
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.Seed(q); err != nil {
		return domain.Question{}, err
	}
	return q.Clone(), nil
}

func (s *QuestionStore) Get(_ context.Context, questionID string) (domain.Question, error) {
	entry, ok := s.entry(questionID)
	if !ok {
		return domain.Question{}, errors.WithDetails(domain.ErrNotFound, "question_id", questionID)
	}
	q := entry.snap.Load().Clone()
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func (s *QuestionStore) ActiveIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.entries[id].snap.Load().Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *QuestionStore) ApplyVote(_ context.Context, vote domain.Vote) (domain.VoteReceipt, error) {
	entry, ok := s.entry(vote.QuestionID)
	if !ok {
		return domain.VoteReceipt{}, errors.WithDetails(domain.ErrNotFound, "question_id", vote.QuestionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if vote.Token != "" {
		if prior, seen := entry.receipts[vote.Token]; seen {
			return domain.VoteReceipt{Question: prior.Clone(), Replayed: true}, nil
		}
	}

	next, err := entry.snap.Load().WithVote(vote.Option)
	if err != nil {
		return domain.VoteReceipt{}, err
	}
	entry.snap.Store(&next)
	if vote.Token != "" {
		entry.receipts[vote.Token] = next
	}
	return domain.VoteReceipt{Question: next.Clone()}, nil
}

func (s *QuestionStore) entry(questionID string) (*questionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[questionID]
	return entry, ok
}
