package redis

import (
	"context"
	"encoding/json"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"normalz-service/internal/domain"
)

// DefaultMaxVoteRetries bounds the optimistic retry loop of ApplyVote.
const DefaultMaxVoteRetries = 64

// QuestionStore keeps questions in Redis and applies votes with WATCH/MULTI
// compare-and-swap on the tally key.
// Layout:
//
//	HSET   normalz:question:{id}          prompt, options (JSON), active, createdAt
//	SET    normalz:question:{id}:tally    {"counts":{...},"total":n,"version":v}
//	HSET   normalz:question:{id}:receipts {token} {tally JSON}
//	RPUSH  normalz:questions:active       {id}
type QuestionStore struct {
	client     *redis.Client
	receiptTTL time.Duration
	maxRetries int
	now        func() time.Time
	newID      func() string
}

func NewQuestionStore(client *redis.Client, receiptTTL time.Duration, maxRetries int) *QuestionStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxVoteRetries
	}
	return &QuestionStore{
		client:     client,
		receiptTTL: receiptTTL,
		maxRetries: maxRetries,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

type tallyRecord struct {
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
	Version int64          `json:"version"`
}

func (s *QuestionStore) Create(ctx context.Context, prompt string, options []string) (domain.Question, error) {
	q, err := domain.NewQuestion(s.newID(), prompt, options, s.now())
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.Save(ctx, q); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// Save writes a complete question, including its tally, and adds it to the active pool.
func (s *QuestionStore) Save(ctx context.Context, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return errors.WrapIf(err, "marshal options")
	}
	tallyJSON, err := encodeTally(q)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, metaKey(q.ID),
			"prompt", q.Prompt,
			"options", optionsJSON,
			"active", boolField(q.Active),
			"createdAt", q.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Set(ctx, tallyKey(q.ID), tallyJSON, 0)
		pipe.LRem(ctx, activeKey, 0, q.ID)
		if q.Active {
			pipe.RPush(ctx, activeKey, q.ID)
		}
		return nil
	})
	return errors.WrapIf(err, "save question")
}

func (s *QuestionStore) Get(ctx context.Context, questionID string) (domain.Question, error) {
	pipe := s.client.Pipeline()
	metaCmd := pipe.HGetAll(ctx, metaKey(questionID))
	tallyCmd := pipe.Get(ctx, tallyKey(questionID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.Question{}, errors.WrapIf(err, "get question")
	}

	meta := metaCmd.Val()
	if len(meta) == 0 {
		return domain.Question{}, errors.WithDetails(domain.ErrNotFound, "question_id", questionID)
	}
	raw, err := tallyCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Question{}, errors.WithDetails(domain.ErrIntegrity, "question_id", questionID, "reason", "missing tally")
		}
		return domain.Question{}, errors.WrapIf(err, "get tally")
	}
	return assemble(questionID, meta, raw)
}

func (s *QuestionStore) ActiveIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.LRange(ctx, activeKey, 0, -1).Result()
	if err != nil {
		return nil, errors.WrapIf(err, "list active questions")
	}
	return ids, nil
}

func (s *QuestionStore) ApplyVote(ctx context.Context, vote domain.Vote) (domain.VoteReceipt, error) {
	meta, err := s.client.HGetAll(ctx, metaKey(vote.QuestionID)).Result()
	if err != nil {
		return domain.VoteReceipt{}, errors.WrapIf(err, "load question")
	}
	if len(meta) == 0 {
		return domain.VoteReceipt{}, errors.WithDetails(domain.ErrNotFound, "question_id", vote.QuestionID)
	}

	tKey := tallyKey(vote.QuestionID)
	rKey := receiptsKey(vote.QuestionID)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var receipt domain.VoteReceipt
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			if vote.Token != "" {
				prior, err := tx.HGet(ctx, rKey, vote.Token).Bytes()
				switch {
				case err == nil:
					q, err := assemble(vote.QuestionID, meta, prior)
					if err != nil {
						return err
					}
					receipt = domain.VoteReceipt{Question: q, Replayed: true}
					return nil
				case !errors.Is(err, redis.Nil):
					return err
				}
			}

			raw, err := tx.Get(ctx, tKey).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return errors.WithDetails(domain.ErrIntegrity, "question_id", vote.QuestionID, "reason", "missing tally")
				}
				return err
			}
			current, err := assemble(vote.QuestionID, meta, raw)
			if err != nil {
				return err
			}
			next, err := current.WithVote(vote.Option)
			if err != nil {
				return err
			}
			encoded, err := encodeTally(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, tKey, encoded, 0)
				if vote.Token != "" {
					pipe.HSet(ctx, rKey, vote.Token, encoded)
					if s.receiptTTL > 0 {
						pipe.Expire(ctx, rKey, s.receiptTTL)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			receipt = domain.VoteReceipt{Question: next}
			return nil
		}, tKey, rKey)

		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.VoteReceipt{}, errors.WrapIf(err, "apply vote")
	}
	return domain.VoteReceipt{}, errors.WithDetails(domain.ErrContention, "question_id", vote.QuestionID, "attempts", s.maxRetries)
}

func assemble(questionID string, meta map[string]string, rawTally []byte) (domain.Question, error) {
	var options []string
	if err := json.Unmarshal([]byte(meta["options"]), &options); err != nil {
		return domain.Question{}, errors.WrapIf(err, "unmarshal options")
	}
	var tally tallyRecord
	if err := json.Unmarshal(rawTally, &tally); err != nil {
		return domain.Question{}, errors.WrapIf(err, "unmarshal tally")
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, meta["createdAt"])
	if tally.Counts == nil {
		tally.Counts = make(map[string]int)
	}

	q := domain.Question{
		ID:           questionID,
		Prompt:       meta["prompt"],
		Options:      options,
		AnswerCounts: tally.Counts,
		TotalAnswers: tally.Total,
		Version:      tally.Version,
		Active:       meta["active"] == "1",
		CreatedAt:    createdAt,
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func encodeTally(q domain.Question) ([]byte, error) {
	raw, err := json.Marshal(tallyRecord{Counts: q.AnswerCounts, Total: q.TotalAnswers, Version: q.Version})
	if err != nil {
		return nil, errors.WrapIf(err, "marshal tally")
	}
	return raw, nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

const activeKey = "normalz:questions:active"

func metaKey(questionID string) string {
	return "normalz:question:" + questionID
}

func tallyKey(questionID string) string {
	return "normalz:question:" + questionID + ":tally"
}

func receiptsKey(questionID string) string {
	return "normalz:question:" + questionID + ":receipts"
}
