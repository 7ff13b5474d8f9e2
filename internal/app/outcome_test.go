package app_test

import (
	"reflect"
	"testing"
	"time"

	"normalz-service/internal/app"
	"normalz-service/internal/domain"
)

func TestResolveTiesFavourVoter(t *testing.T) {
	q := tallied(map[string]int{"A": 5, "B": 5, "C": 2}, "A", "B", "C")

	cases := map[string]domain.Outcome{
		"A": domain.OutcomeWin,
		"B": domain.OutcomeWin,
		"C": domain.OutcomeLose,
	}
	for option, want := range cases {
		if got := app.Resolve(q, option); got != want {
			t.Fatalf("option %s: expected %s, got %s", option, want, got)
		}
	}

	if got := app.Leaders(q); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("expected leaders [A B], got %v", got)
	}
}

func TestResolveIgnoresOptionOrder(t *testing.T) {
	counts := map[string]int{"A": 1, "B": 4}
	forward := tallied(counts, "A", "B")
	reversed := tallied(counts, "B", "A")

	for _, option := range []string{"A", "B"} {
		if app.Resolve(forward, option) != app.Resolve(reversed, option) {
			t.Fatalf("outcome for %s depends on option order", option)
		}
	}
	if app.Resolve(forward, "B") != domain.OutcomeWin {
		t.Fatalf("expected plurality option to win")
	}
}

func TestResolveSingleVoteWins(t *testing.T) {
	q, _ := domain.NewQuestion("q", "", []string{"A", "B"}, time.Time{})
	next, err := q.WithVote("B")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if app.Resolve(next, "B") != domain.OutcomeWin {
		t.Fatalf("expected first voter to win")
	}
	if app.Resolve(next, "missing") != domain.OutcomeLose {
		t.Fatalf("expected unknown option to lose")
	}
}

func tallied(counts map[string]int, options ...string) domain.Question {
	q, _ := domain.NewQuestion("q", "", options, time.Time{})
	total := 0
	for opt, n := range counts {
		q.AnswerCounts[opt] = n
		total += n
	}
	q.TotalAnswers = total
	return q
}
