package models

import (
	"fmt"
	"time"
)

// RecurrenceRule is a closed set; NextDate switches over it exhaustively
// so a new rule is a compile-time-visible change.
type RecurrenceRule string

const (
	RuleNone     RecurrenceRule = "none"
	RuleDaily    RecurrenceRule = "daily"
	RuleWeekly   RecurrenceRule = "weekly"
	RuleBiWeekly RecurrenceRule = "biweekly"
	RuleMonthly  RecurrenceRule = "monthly"
	RuleYearly   RecurrenceRule = "yearly"
)

// Valid reports whether r is one of the known rules.
func (r RecurrenceRule) Valid() bool {
	switch r {
	case RuleNone, RuleDaily, RuleWeekly, RuleBiWeekly, RuleMonthly, RuleYearly:
		return true
	}
	return false
}

// ParseRecurrenceRule converts the wire form of a rule.
func ParseRecurrenceRule(s string) (RecurrenceRule, error) {
	if r := RecurrenceRule(s); r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown recurrence rule %q", ErrInvalidInput, s)
}

// NextDate advances t by one occurrence of the rule. Monthly clamps the
// day-of-month to the last valid day of the target month (Jan 31 → Feb 28
// or 29), Yearly clamps Feb 29 → Feb 28 in non-leap years. RuleNone
// returns t unchanged.
func NextDate(t time.Time, rule RecurrenceRule) time.Time {
	switch rule {
	case RuleNone:
		return t
	case RuleDaily:
		return t.AddDate(0, 0, 1)
	case RuleWeekly:
		return t.AddDate(0, 0, 7)
	case RuleBiWeekly:
		return t.AddDate(0, 0, 14)
	case RuleMonthly:
		return addMonthsClamped(t, 1)
	case RuleYearly:
		return addYearsClamped(t, 1)
	}
	return t
}

// addMonthsClamped cannot use AddDate directly: Go normalizes Jan 31 + 1
// month to Mar 2/3 instead of the last day of February.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	year, month, day := t.Date()
	if last := daysInMonth(year+years, month); day > last {
		day = last
	}
	return time.Date(year+years, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Rollover fast-forwards the event to its next pending occurrence. Each
// elapsed occurrence resets every participant and clears the pick
// history, so a service that was offline across several cycles still
// lands on a fresh round with the correct date. Calling it again with
// the same now is a no-op. Returns whether the event changed.
func (e *Event) Rollover(now time.Time) bool {
	changed := false
	for e.Rule != RuleNone && !e.Date.After(now) {
		next := NextDate(e.Date, e.Rule)
		if !next.After(e.Date) {
			// unknown rule, the loop would never terminate
			break
		}
		for _, p := range e.Participants {
			p.Picked = false
			p.PickedAt = nil
		}
		e.PickHistory = nil
		e.Date = next
		changed = true
	}
	return changed
}
