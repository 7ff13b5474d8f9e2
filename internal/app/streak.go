package app

import (
	"time"

	"normalz-service/internal/domain"
)

// DefaultResetLocation is the fixed UTC+2 zone whose midnight closes a daily period.
var DefaultResetLocation = time.FixedZone("UTC+2", 2*60*60)

// StreakTracker applies outcomes and scheduled resets to a StreakState.
// It holds no player state and is safe for concurrent use.
type StreakTracker struct {
	loc          *time.Location
	weekStart    time.Weekday
	achievements []domain.Achievement
}

func NewStreakTracker(loc *time.Location, weekStart time.Weekday) *StreakTracker {
	if loc == nil {
		loc = DefaultResetLocation
	}
	return &StreakTracker{loc: loc, weekStart: weekStart, achievements: domain.Achievements}
}

// Record advances the streak on a win (raising any beaten high-water marks) and
// resets it on a loss. Callers must record each resolved submission exactly once.
func (t *StreakTracker) Record(state domain.StreakState, outcome domain.Outcome) (domain.StreakState, domain.StreakUpdate) {
	update := domain.StreakUpdate{}
	if outcome != domain.OutcomeWin {
		state.Current = 0
		update.State = state
		return state, update
	}

	state.Current++
	for _, p := range domain.Periods {
		if state.Current > state.Mark(p) {
			state.SetMark(p, state.Current)
			update.Raised = append(update.Raised, p)
		}
	}
	for _, a := range t.achievements {
		if state.Current == a.Threshold {
			update.Achievements = append(update.Achievements, a)
		}
	}
	update.State = state
	return state, update
}

// CheckResets zeroes the daily and weekly marks once per boundary crossed since the
// stored reset timestamps. A zero timestamp is stamped without resetting.
func (t *StreakTracker) CheckResets(state domain.StreakState, now time.Time) (domain.StreakState, []domain.Period) {
	var resets []domain.Period

	daily := t.DailyBoundary(now)
	switch {
	case state.LastDailyReset.IsZero():
		state.LastDailyReset = daily
	case state.LastDailyReset.Before(daily):
		state.Daily = 0
		state.LastDailyReset = daily
		resets = append(resets, domain.PeriodDaily)
	}

	weekly := t.WeeklyBoundary(now)
	switch {
	case state.LastWeeklyReset.IsZero():
		state.LastWeeklyReset = weekly
	case state.LastWeeklyReset.Before(weekly):
		state.Weekly = 0
		state.LastWeeklyReset = weekly
		resets = append(resets, domain.PeriodWeekly)
	}
	return state, resets
}

// DailyBoundary is the most recent local midnight at or before now.
func (t *StreakTracker) DailyBoundary(now time.Time) time.Time {
	local := now.In(t.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.loc)
}

// WeeklyBoundary is the most recent daily boundary that falls on the week-start day.
func (t *StreakTracker) WeeklyBoundary(now time.Time) time.Time {
	day := t.DailyBoundary(now)
	back := (int(day.Weekday()) - int(t.weekStart) + 7) % 7
	return day.AddDate(0, 0, -back)
}
