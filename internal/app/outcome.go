package app

import "normalz-service/internal/domain"

// Resolve classifies chosen against the post-vote tally. Ties favour the voter:
// any option holding the maximum count wins, regardless of option order.
func Resolve(q domain.Question, chosen string) domain.Outcome {
	if !q.HasOption(chosen) {
		return domain.OutcomeLose
	}
	if q.Count(chosen) == maxCount(q) {
		return domain.OutcomeWin
	}
	return domain.OutcomeLose
}

// Leaders returns the plurality set in option order.
func Leaders(q domain.Question) []string {
	top := maxCount(q)
	leaders := make([]string, 0, 1)
	for _, opt := range q.Options {
		if q.Count(opt) == top {
			leaders = append(leaders, opt)
		}
	}
	return leaders
}

func maxCount(q domain.Question) int {
	top := 0
	for _, opt := range q.Options {
		if n := q.Count(opt); n > top {
			top = n
		}
	}
	return top
}
