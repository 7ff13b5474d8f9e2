package domain

import (
	"strings"
	"time"

	"emperror.dev/errors"
)

// Question is a prompt with a fixed option set and the running tally of answers.
// Values are treated as immutable snapshots; WithVote returns a new one.
type Question struct {
	ID           string         `json:"questionId"`
	Prompt       string         `json:"prompt,omitempty"`
	Options      []string       `json:"options"`
	AnswerCounts map[string]int `json:"answerCounts"`
	TotalAnswers int            `json:"totalAnswers"`
	Version      int64          `json:"version"`
	Active       bool           `json:"active"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// NewQuestion builds a zero-tally active question after validating the options.
func NewQuestion(id, prompt string, options []string, createdAt time.Time) (Question, error) {
	if err := ValidateOptions(options); err != nil {
		return Question{}, err
	}
	counts := make(map[string]int, len(options))
	for _, opt := range options {
		counts[opt] = 0
	}
	return Question{
		ID:           id,
		Prompt:       prompt,
		Options:      append([]string(nil), options...),
		AnswerCounts: counts,
		Active:       true,
		CreatedAt:    createdAt,
	}, nil
}

// ValidateOptions requires at least two distinct, non-blank labels.
func ValidateOptions(options []string) error {
	if len(options) < 2 {
		return errors.WithDetails(ErrInvalidOptions, "count", len(options))
	}
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return errors.WithDetails(ErrInvalidOptions, "reason", "blank label")
		}
		if _, dup := seen[opt]; dup {
			return errors.WithDetails(ErrInvalidOptions, "duplicate", opt)
		}
		seen[opt] = struct{}{}
	}
	return nil
}

// HasOption reports whether label belongs to the option set.
func (q Question) HasOption(label string) bool {
	for _, opt := range q.Options {
		if opt == label {
			return true
		}
	}
	return false
}

// Count returns the votes for label; options never voted for count zero.
func (q Question) Count(label string) int {
	return q.AnswerCounts[label]
}

// Validate checks the tally invariants: counts are non-negative, only cover known
// options and add up to TotalAnswers.
func (q Question) Validate() error {
	if q.TotalAnswers < 0 {
		return errors.WithDetails(ErrIntegrity, "question_id", q.ID, "total", q.TotalAnswers)
	}
	sum := 0
	for label, n := range q.AnswerCounts {
		if n < 0 || !q.HasOption(label) {
			return errors.WithDetails(ErrIntegrity, "question_id", q.ID, "option", label, "count", n)
		}
		sum += n
	}
	if sum != q.TotalAnswers {
		return errors.WithDetails(ErrIntegrity, "question_id", q.ID, "sum", sum, "total", q.TotalAnswers)
	}
	return nil
}

// Clone returns a deep copy so callers can never alias a stored snapshot.
func (q Question) Clone() Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	out.AnswerCounts = make(map[string]int, len(q.AnswerCounts))
	for k, v := range q.AnswerCounts {
		out.AnswerCounts[k] = v
	}
	return out
}

// WithVote returns the snapshot that results from one more vote for label.
// The receiver is left untouched.
func (q Question) WithVote(label string) (Question, error) {
	if !q.HasOption(label) {
		return Question{}, errors.WithDetails(ErrUnknownOption, "question_id", q.ID, "option", label)
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	next := q.Clone()
	next.AnswerCounts[label]++
	next.TotalAnswers++
	next.Version++
	return next, nil
}

// Vote is a single submission against a question.
type Vote struct {
	QuestionID string
	Option     string
	VoterID    string
	// Token deduplicates retries within the question when non-empty.
	Token string
}

// VoteReceipt is the post-vote snapshot. Replayed is set when Token had already been applied,
// in which case Question is the snapshot recorded by the first application.
type VoteReceipt struct {
	Question Question
	Replayed bool
}

// Outcome classifies a submission against the post-vote tally.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// Period identifies a high-water mark and its leaderboard.
type Period string

const (
	PeriodAllTime Period = "allTime"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
)

// Periods lists the high-water marks in reporting order.
var Periods = []Period{PeriodAllTime, PeriodDaily, PeriodWeekly}

// StreakState is the per-player streak and its high-water marks.
type StreakState struct {
	Current         int       `json:"current"`
	AllTime         int       `json:"allTime"`
	Daily           int       `json:"daily"`
	Weekly          int       `json:"weekly"`
	LastDailyReset  time.Time `json:"lastDailyReset"`
	LastWeeklyReset time.Time `json:"lastWeeklyReset"`
	// Submissions holds the most recent submission ids already applied, oldest first.
	Submissions []string `json:"submissions,omitempty"`
}

// MaxRecordedSubmissions bounds StreakState.Submissions.
const MaxRecordedSubmissions = 32

// HasRecorded reports whether submissionID was already applied to the streak.
func (s StreakState) HasRecorded(submissionID string) bool {
	for _, id := range s.Submissions {
		if id == submissionID {
			return true
		}
	}
	return false
}

// WithRecorded returns a copy of s that remembers submissionID, dropping the oldest
// id once MaxRecordedSubmissions is reached.
func (s StreakState) WithRecorded(submissionID string) StreakState {
	ids := s.Submissions
	if len(ids) >= MaxRecordedSubmissions {
		ids = ids[len(ids)-MaxRecordedSubmissions+1:]
	}
	s.Submissions = append(append(make([]string, 0, len(ids)+1), ids...), submissionID)
	return s
}

// Mark returns the high-water mark for p.
func (s StreakState) Mark(p Period) int {
	switch p {
	case PeriodDaily:
		return s.Daily
	case PeriodWeekly:
		return s.Weekly
	default:
		return s.AllTime
	}
}

// SetMark overwrites the high-water mark for p.
func (s *StreakState) SetMark(p Period, v int) {
	switch p {
	case PeriodDaily:
		s.Daily = v
	case PeriodWeekly:
		s.Weekly = v
	default:
		s.AllTime = v
	}
}

// Achievement is unlocked each time a streak reaches Threshold.
type Achievement struct {
	Threshold int    `json:"threshold"`
	Title     string `json:"title"`
	Emoji     string `json:"emoji"`
}

var (
	ThreeStreak = Achievement{Threshold: 3, Title: "3 Correct Predictions Streak", Emoji: "🔥"}
	FiveStreak  = Achievement{Threshold: 5, Title: "5 Correct Predictions Streak", Emoji: "🏆"}
	TenStreak   = Achievement{Threshold: 10, Title: "10 Correct Predictions Streak", Emoji: "🎖"}
)

// Achievements is the fixed, ordered set of streak thresholds.
var Achievements = []Achievement{ThreeStreak, FiveStreak, TenStreak}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// Submission is what a client sends when answering.
type Submission struct {
	QuestionID     string
	SelectedOption string
	PlayerID       string
	SubmissionID   string
}

// StreakUpdate reports what a resolved outcome did to a player's streak.
type StreakUpdate struct {
	State        StreakState   `json:"state"`
	Achievements []Achievement `json:"achievements"`
	Raised       []Period      `json:"raised"`
	Resets       []Period      `json:"resets"`
}

// SubmitResult is the server-authoritative answer to a submission.
type SubmitResult struct {
	Outcome  Outcome
	Question Question
	Replayed bool
	Streak   *StreakUpdate
}
