package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PickMethod string

const (
	PickRandom PickMethod = "random"
	PickManual PickMethod = "manual"
)

type Channel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Participant struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Picked   bool       `json:"picked"`
	PickedAt *time.Time `json:"picked_at,omitempty"`
}

// PickRecord is one entry of the per-round undo history. The history is
// append-only within a round and cleared on rollover, so it never grows
// past one record per participant.
type PickRecord struct {
	ParticipantID string     `json:"participant_id"`
	Timestamp     time.Time  `json:"timestamp"`
	Method        PickMethod `json:"method"`
}

type Event struct {
	ID           int64          `json:"id"`
	Channel      string         `json:"channel"`
	Name         string         `json:"name"`
	Date         time.Time      `json:"date"`
	Rule         RecurrenceRule `json:"rule"`
	Participants []*Participant `json:"participants"`
	PickHistory  []PickRecord   `json:"pick_history"`
}

// EventSummary is the list-view projection of an event.
type EventSummary struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Date         time.Time      `json:"date"`
	Rule         RecurrenceRule `json:"rule"`
	Participants int            `json:"participants"`
	Picked       int            `json:"picked"`
}

func (e *Event) Summary() EventSummary {
	picked := 0
	for _, p := range e.Participants {
		if p.Picked {
			picked++
		}
	}
	return EventSummary{
		ID:           e.ID,
		Name:         e.Name,
		Date:         e.Date,
		Rule:         e.Rule,
		Participants: len(e.Participants),
		Picked:       picked,
	}
}

// AddParticipants appends one participant per name. Names must be unique
// case-insensitively within the event; on any duplicate nothing is added.
func (e *Event) AddParticipants(names []string) ([]*Participant, error) {
	seen := make(map[string]struct{}, len(e.Participants)+len(names))
	for _, p := range e.Participants {
		seen[strings.ToLower(p.Name)] = struct{}{}
	}

	added := make([]*Participant, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty participant name", ErrInvalidInput)
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: participant %q already exists", ErrConflict, name)
		}
		seen[key] = struct{}{}
		added = append(added, &Participant{
			ID:   uuid.NewString(),
			Name: name,
		})
	}

	e.Participants = append(e.Participants, added...)
	return added, nil
}

// RemoveParticipants removes the given participants and any pick records
// referencing them. Remaining records keep their relative order. Fails
// without modifying the event if any id is unknown.
func (e *Event) RemoveParticipants(ids []string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := e.findParticipant(id); !ok {
			return fmt.Errorf("%w: participant %s", ErrNotFound, id)
		}
		drop[id] = struct{}{}
	}

	kept := e.Participants[:0]
	for _, p := range e.Participants {
		if _, ok := drop[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	e.Participants = kept

	history := e.PickHistory[:0]
	for _, rec := range e.PickHistory {
		if _, ok := drop[rec.ParticipantID]; !ok {
			history = append(history, rec)
		}
	}
	e.PickHistory = history
	return nil
}

// UpdateDetails replaces the provided fields. A date in the past combined
// with RuleNone is rejected: such an event could never roll over and
// would stay permanently stale.
func (e *Event) UpdateDetails(name *string, date *time.Time, rule *RecurrenceRule, now time.Time) error {
	newDate := e.Date
	newRule := e.Rule
	if date != nil {
		newDate = *date
	}
	if rule != nil {
		newRule = *rule
	}
	if !newRule.Valid() {
		return fmt.Errorf("%w: unknown recurrence rule %q", ErrInvalidInput, newRule)
	}
	if newRule == RuleNone && !newDate.After(now) {
		return fmt.Errorf("%w: non-recurring event date must be in the future", ErrInvalidInput)
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return fmt.Errorf("%w: empty event name", ErrInvalidInput)
		}
		e.Name = trimmed
	}
	e.Date = newDate
	e.Rule = newRule
	return nil
}

func (e *Event) findParticipant(id string) (*Participant, bool) {
	for _, p := range e.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Unpicked returns the participants still eligible in the current round.
func (e *Event) Unpicked() []*Participant {
	out := make([]*Participant, 0, len(e.Participants))
	for _, p := range e.Participants {
		if !p.Picked {
			out = append(out, p)
		}
	}
	return out
}

// MarkPicked marks the participant picked and appends the undo record.
func (e *Event) MarkPicked(id string, now time.Time, method PickMethod) (*Participant, error) {
	p, ok := e.findParticipant(id)
	if !ok {
		return nil, fmt.Errorf("%w: participant %s", ErrNotFound, id)
	}
	if p.Picked {
		return nil, fmt.Errorf("%w: participant %q already picked", ErrConflict, p.Name)
	}
	at := now
	p.Picked = true
	p.PickedAt = &at
	e.PickHistory = append(e.PickHistory, PickRecord{
		ParticipantID: id,
		Timestamp:     now,
		Method:        method,
	})
	return p, nil
}

// UndoLastPick pops the most recent pick record and unpicks the
// participant it refers to, returning that participant's id.
func (e *Event) UndoLastPick() (string, error) {
	if len(e.PickHistory) == 0 {
		return "", ErrEmptyHistory
	}
	last := e.PickHistory[len(e.PickHistory)-1]
	e.PickHistory = e.PickHistory[:len(e.PickHistory)-1]
	if p, ok := e.findParticipant(last.ParticipantID); ok {
		p.Picked = false
		p.PickedAt = nil
	}
	return last.ParticipantID, nil
}

// Clone returns a deep copy so stored state is never aliased by callers.
func (e *Event) Clone() *Event {
	cp := *e
	cp.Participants = make([]*Participant, len(e.Participants))
	for i, p := range e.Participants {
		pc := *p
		if p.PickedAt != nil {
			at := *p.PickedAt
			pc.PickedAt = &at
		}
		cp.Participants[i] = &pc
	}
	cp.PickHistory = make([]PickRecord, len(e.PickHistory))
	copy(cp.PickHistory, e.PickHistory)
	return &cp
}
