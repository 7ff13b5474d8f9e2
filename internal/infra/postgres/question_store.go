package postgres

import (
	"context"
	"encoding/json"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"normalz-service/internal/domain"
)

// QuestionStore keeps questions and tallies in Postgres. Votes serialise on the
// question row (SELECT ... FOR UPDATE) for the length of one transaction.
type QuestionStore struct {
	pool  *pgxpool.Pool
	now   func() time.Time
	newID func() string
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool, now: time.Now, newID: uuid.NewString}
}

const selectQuestion = `SELECT id, prompt, options, answer_counts, total_answers, version, active, created_at FROM questions WHERE id=$1`

func (s *QuestionStore) Create(ctx context.Context, prompt string, options []string) (domain.Question, error) {
	q, err := domain.NewQuestion(s.newID(), prompt, options, s.now().UTC())
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.Save(ctx, q); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// Save upserts a full question, tally included.
func (s *QuestionStore) Save(ctx context.Context, q domain.Question) error {
	if err := domain.ValidateOptions(q.Options); err != nil {
		return err
	}
	if err := q.Validate(); err != nil {
		return err
	}
	options, counts, err := encode(q)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO questions (id, prompt, options, answer_counts, total_answers, version, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    prompt=EXCLUDED.prompt, options=EXCLUDED.options, answer_counts=EXCLUDED.answer_counts,
    total_answers=EXCLUDED.total_answers, version=EXCLUDED.version, active=EXCLUDED.active`,
		q.ID, q.Prompt, options, counts, q.TotalAnswers, q.Version, q.Active, q.CreatedAt)
	return errors.WrapIfWithDetails(err, "save question", "question_id", q.ID)
}

func (s *QuestionStore) Get(ctx context.Context, questionID string) (domain.Question, error) {
	q, err := scanQuestion(s.pool.QueryRow(ctx, selectQuestion, questionID))
	if err != nil {
		return domain.Question{}, withID(err, questionID)
	}
	return q, nil
}

func (s *QuestionStore) ActiveIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM questions WHERE active ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.WrapIf(err, "list active questions")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.WrapIf(err, "scan question id")
		}
		ids = append(ids, id)
	}
	return ids, errors.WrapIf(rows.Err(), "list active questions")
}

func (s *QuestionStore) ApplyVote(ctx context.Context, vote domain.Vote) (domain.VoteReceipt, error) {
	var receipt domain.VoteReceipt
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanQuestion(tx.QueryRow(ctx, selectQuestion+` FOR UPDATE`, vote.QuestionID))
		if err != nil {
			return withID(err, vote.QuestionID)
		}

		if vote.Token != "" {
			var raw []byte
			err := tx.QueryRow(ctx, `SELECT snapshot FROM question_submissions WHERE question_id=$1 AND token=$2`,
				vote.QuestionID, vote.Token).Scan(&raw)
			switch {
			case err == nil:
				var prior domain.Question
				if err := json.Unmarshal(raw, &prior); err != nil {
					return errors.WrapIf(err, "decode submission receipt")
				}
				receipt = domain.VoteReceipt{Question: prior, Replayed: true}
				return nil
			case !errors.Is(err, pgx.ErrNoRows):
				return errors.WrapIf(err, "load submission receipt")
			}
		}

		next, err := current.WithVote(vote.Option)
		if err != nil {
			return err
		}
		counts, err := json.Marshal(next.AnswerCounts)
		if err != nil {
			return errors.WrapIf(err, "encode tally")
		}
		if _, err := tx.Exec(ctx, `UPDATE questions SET answer_counts=$2, total_answers=$3, version=$4 WHERE id=$1`,
			next.ID, counts, next.TotalAnswers, next.Version); err != nil {
			return errors.WrapIf(err, "update tally")
		}

		if vote.Token != "" {
			snapshot, err := json.Marshal(next)
			if err != nil {
				return errors.WrapIf(err, "encode submission receipt")
			}
			if _, err := tx.Exec(ctx, `INSERT INTO question_submissions (question_id, token, snapshot) VALUES ($1, $2, $3)`,
				next.ID, vote.Token, snapshot); err != nil {
				return errors.WrapIf(err, "store submission receipt")
			}
		}
		receipt = domain.VoteReceipt{Question: next}
		return nil
	})
	if err != nil {
		return domain.VoteReceipt{}, err
	}
	return receipt, nil
}

func (s *QuestionStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.WrapIf(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return errors.WrapIf(tx.Commit(ctx), "commit tx")
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q       domain.Question
		options []byte
		counts  []byte
	)
	if err := row.Scan(&q.ID, &q.Prompt, &options, &counts, &q.TotalAnswers, &q.Version, &q.Active, &q.CreatedAt); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, errors.WithDetails(domain.ErrIntegrity, "reason", "options not decodable")
	}
	if err := json.Unmarshal(counts, &q.AnswerCounts); err != nil {
		return domain.Question{}, errors.WithDetails(domain.ErrIntegrity, "reason", "tally not decodable")
	}
	if q.AnswerCounts == nil {
		q.AnswerCounts = make(map[string]int, len(q.Options))
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func encode(q domain.Question) ([]byte, []byte, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return nil, nil, errors.WrapIf(err, "encode options")
	}
	counts, err := json.Marshal(q.AnswerCounts)
	if err != nil {
		return nil, nil, errors.WrapIf(err, "encode tally")
	}
	return options, counts, nil
}

func withID(err error, questionID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.WithDetails(domain.ErrNotFound, "question_id", questionID)
	}
	if errors.Is(err, domain.ErrIntegrity) {
		return err
	}
	return errors.WrapIfWithDetails(err, "load question", "question_id", questionID)
}
