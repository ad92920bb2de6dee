package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestParseRecurrenceRule(t *testing.T) {
	for _, s := range []string{"none", "daily", "weekly", "biweekly", "monthly", "yearly"} {
		rule, err := ParseRecurrenceRule(s)
		require.NoError(t, err)
		assert.Equal(t, RecurrenceRule(s), rule)
	}

	_, err := ParseRecurrenceRule("fortnightly")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNextDate_FixedIntervals(t *testing.T) {
	start := date(2024, time.March, 4)

	assert.Equal(t, date(2024, time.March, 5), NextDate(start, RuleDaily))
	assert.Equal(t, date(2024, time.March, 11), NextDate(start, RuleWeekly))
	assert.Equal(t, date(2024, time.March, 18), NextDate(start, RuleBiWeekly))
	assert.Equal(t, start, NextDate(start, RuleNone))
}

func TestNextDate_MonthlyClampsToEndOfMonth(t *testing.T) {
	assert.Equal(t, date(2023, time.February, 28), NextDate(date(2023, time.January, 31), RuleMonthly))
	// leap year
	assert.Equal(t, date(2024, time.February, 29), NextDate(date(2024, time.January, 31), RuleMonthly))
	// no clamp needed
	assert.Equal(t, date(2024, time.April, 15), NextDate(date(2024, time.March, 15), RuleMonthly))
	// December wraps the year
	assert.Equal(t, date(2025, time.January, 31), NextDate(date(2024, time.December, 31), RuleMonthly))
}

func TestNextDate_MonthlyNeverOvershootsIntoMarch(t *testing.T) {
	next := NextDate(date(2023, time.January, 31), RuleMonthly)
	assert.Equal(t, time.February, next.Month())
}

func TestNextDate_YearlyClampsLeapDay(t *testing.T) {
	assert.Equal(t, date(2025, time.February, 28), NextDate(date(2024, time.February, 29), RuleYearly))
	assert.Equal(t, date(2025, time.July, 4), NextDate(date(2024, time.July, 4), RuleYearly))
}

func TestNextDate_PreservesTimeOfDay(t *testing.T) {
	start := time.Date(2024, time.January, 31, 17, 45, 30, 0, time.UTC)
	next := NextDate(start, RuleMonthly)
	assert.Equal(t, 17, next.Hour())
	assert.Equal(t, 45, next.Minute())
	assert.Equal(t, 30, next.Second())
}

func rolloverEvent(d time.Time, rule RecurrenceRule) *Event {
	ev := &Event{
		Name: "standup",
		Date: d,
		Rule: rule,
		Participants: []*Participant{
			{ID: "a", Name: "alice"},
			{ID: "b", Name: "bob"},
		},
	}
	now := d.Add(-time.Hour)
	ev.Participants[0].Picked = true
	ev.Participants[0].PickedAt = &now
	ev.PickHistory = []PickRecord{{ParticipantID: "a", Timestamp: now, Method: PickRandom}}
	return ev
}

func TestRollover_ResetsRoundAndAdvancesDate(t *testing.T) {
	ev := rolloverEvent(date(2024, time.March, 4), RuleDaily)
	now := date(2024, time.March, 4).Add(time.Minute)

	require.True(t, ev.Rollover(now))

	assert.Equal(t, date(2024, time.March, 5), ev.Date)
	assert.Empty(t, ev.PickHistory)
	for _, p := range ev.Participants {
		assert.False(t, p.Picked)
		assert.Nil(t, p.PickedAt)
	}
}

func TestRollover_FastForwardsMissedCycles(t *testing.T) {
	ev := rolloverEvent(date(2024, time.March, 4), RuleDaily)
	// service was down for ten days
	now := date(2024, time.March, 14).Add(time.Minute)

	require.True(t, ev.Rollover(now))
	assert.Equal(t, date(2024, time.March, 15), ev.Date)
}

func TestRollover_Idempotent(t *testing.T) {
	ev := rolloverEvent(date(2024, time.March, 4), RuleWeekly)
	now := date(2024, time.March, 20)

	require.True(t, ev.Rollover(now))
	dateAfter := ev.Date

	assert.False(t, ev.Rollover(now))
	assert.Equal(t, dateAfter, ev.Date)
}

func TestRollover_FutureDateIsNoop(t *testing.T) {
	ev := rolloverEvent(date(2024, time.March, 4), RuleDaily)
	assert.False(t, ev.Rollover(date(2024, time.March, 3)))
	assert.Len(t, ev.PickHistory, 1)
}

func TestRecurrenceRule_Valid(t *testing.T) {
	for _, r := range []RecurrenceRule{RuleNone, RuleDaily, RuleWeekly, RuleBiWeekly, RuleMonthly, RuleYearly} {
		assert.True(t, r.Valid())
	}
	assert.False(t, RecurrenceRule("fortnightly").Valid())
	assert.False(t, RecurrenceRule("").Valid())
}

func TestRollover_UnknownRuleTerminates(t *testing.T) {
	ev := rolloverEvent(date(2024, time.March, 4), RecurrenceRule("fortnightly"))

	done := make(chan bool, 1)
	go func() {
		done <- ev.Rollover(date(2030, time.January, 1))
	}()
	select {
	case changed := <-done:
		assert.False(t, changed)
		assert.Equal(t, date(2024, time.March, 4), ev.Date)
		assert.Len(t, ev.PickHistory, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("Rollover did not return for an unknown rule")
	}
}

func TestRollover_NoneRuleStaysStale(t *testing.T) {
	ev := rolloverEvent(date(2024, time.March, 4), RuleNone)
	assert.False(t, ev.Rollover(date(2030, time.January, 1)))
	assert.Equal(t, date(2024, time.March, 4), ev.Date)
	assert.True(t, ev.Participants[0].Picked)
}
