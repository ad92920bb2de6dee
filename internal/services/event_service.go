package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"pickd/internal/models"
	"pickd/internal/providers"
	"pickd/internal/store"
)

// EventCreation carries the fields of an add-event intent.
type EventCreation struct {
	Name         string
	Date         time.Time
	Rule         models.RecurrenceRule
	Participants []string
}

// EventUpdate carries the optional fields of an edit-event intent.
type EventUpdate struct {
	Name *string
	Date *time.Time
	Rule *models.RecurrenceRule
}

type EventServiceInterface interface {
	Pick(ctx context.Context, channel string, eventID int64) (*models.Participant, error)
	PickSpecific(ctx context.Context, channel string, eventID int64, participantID string) (*models.Participant, error)
	Retry(ctx context.Context, channel string, eventID int64) (*models.Participant, error)
	CancelPick(ctx context.Context, channel string, eventID int64) (*models.Participant, error)
	AddEvent(ctx context.Context, channel string, data EventCreation) (*models.Event, error)
	EditEvent(ctx context.Context, channel string, eventID int64, data EventUpdate) (*models.Event, error)
	DeleteEvent(ctx context.Context, channel string, eventID int64) error
	PatchParticipants(ctx context.Context, channel string, eventID int64, add, remove []string) (*models.Event, error)
	ListChannels(ctx context.Context) ([]models.Channel, error)
	ListEvents(ctx context.Context, channel string) ([]models.EventSummary, error)
	ShowEvent(ctx context.Context, channel string, eventID int64) (*models.Event, error)
	SweepRollovers() int
	CountEvents() int
	CountChannels() int
}

type EventService struct {
	store  store.EventStoreInterface
	locks  providers.LockProviderInterface
	logger providers.Logger
	cache  providers.CacheProviderInterface
	now    func() time.Time
	intN   func(n int) int
}

func NewEventService(eventStore store.EventStoreInterface, locks providers.LockProviderInterface, logger providers.Logger, cache providers.CacheProviderInterface) EventServiceInterface {
	return &EventService{
		store:  eventStore,
		locks:  locks,
		logger: logger,
		cache:  cache,
		now:    time.Now,
		intN:   rand.IntN,
	}
}

// mutate acquires the event's token, rolls the event over, applies fn
// and persists the result. Once the token is held the mutation runs to
// completion even if the caller's context is abandoned; a pick that was
// drawn must also be recorded.
func (es *EventService) mutate(ctx context.Context, channel string, eventID int64, fn func(ev *models.Event) error) (*models.Event, error) {
	release, err := es.locks.Acquire(ctx, providers.LockKey(channel, eventID))
	if err != nil {
		return nil, err
	}
	defer release()

	ev, err := es.store.LoadEvent(channel, eventID)
	if err != nil {
		return nil, err
	}

	ev.Rollover(es.now())

	if err := fn(ev); err != nil {
		return nil, err
	}

	if err := es.store.SaveEvent(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (es *EventService) Pick(ctx context.Context, channel string, eventID int64) (*models.Participant, error) {
	var picked *models.Participant
	_, err := es.mutate(ctx, channel, eventID, func(ev *models.Event) error {
		unpicked := ev.Unpicked()
		if len(unpicked) == 0 {
			return fmt.Errorf("%w: event %q", models.ErrAllPicked, ev.Name)
		}
		sel := unpicked[es.intN(len(unpicked))]
		p, err := ev.MarkPicked(sel.ID, es.now(), models.PickRandom)
		if err != nil {
			return err
		}
		picked = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

func (es *EventService) PickSpecific(ctx context.Context, channel string, eventID int64, participantID string) (*models.Participant, error) {
	var picked *models.Participant
	_, err := es.mutate(ctx, channel, eventID, func(ev *models.Event) error {
		p, err := ev.MarkPicked(participantID, es.now(), models.PickManual)
		if err != nil {
			return err
		}
		picked = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

// Retry undoes the most recent pick and draws again. The undone
// participant is excluded from the redraw unless nobody else is
// eligible, in which case it is picked again.
func (es *EventService) Retry(ctx context.Context, channel string, eventID int64) (*models.Participant, error) {
	var picked *models.Participant
	_, err := es.mutate(ctx, channel, eventID, func(ev *models.Event) error {
		undoneID, err := ev.UndoLastPick()
		if err != nil {
			return err
		}

		unpicked := ev.Unpicked()
		candidates := unpicked[:0:0]
		for _, p := range unpicked {
			if p.ID != undoneID {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			candidates = unpicked
		}

		sel := candidates[es.intN(len(candidates))]
		p, err := ev.MarkPicked(sel.ID, es.now(), models.PickRandom)
		if err != nil {
			return err
		}
		picked = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

// CancelPick undoes the most recent pick without drawing a replacement.
func (es *EventService) CancelPick(ctx context.Context, channel string, eventID int64) (*models.Participant, error) {
	var undone *models.Participant
	_, err := es.mutate(ctx, channel, eventID, func(ev *models.Event) error {
		id, err := ev.UndoLastPick()
		if err != nil {
			return err
		}
		for _, p := range ev.Participants {
			if p.ID == id {
				undone = p
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return undone, nil
}

func (es *EventService) AddEvent(_ context.Context, channel string, data EventCreation) (*models.Event, error) {
	channel = strings.TrimSpace(channel)
	name := strings.TrimSpace(data.Name)
	if channel == "" {
		return nil, fmt.Errorf("%w: empty channel", models.ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty event name", models.ErrInvalidInput)
	}
	if !data.Rule.Valid() {
		return nil, fmt.Errorf("%w: unknown recurrence rule %q", models.ErrInvalidInput, data.Rule)
	}
	if data.Rule == models.RuleNone && !data.Date.After(es.now()) {
		return nil, fmt.Errorf("%w: non-recurring event date must be in the future", models.ErrInvalidInput)
	}

	ev := &models.Event{
		Channel: channel,
		Name:    name,
		Date:    data.Date,
		Rule:    data.Rule,
	}
	if _, err := ev.AddParticipants(data.Participants); err != nil {
		return nil, err
	}

	created, err := es.store.CreateEvent(ev)
	if err != nil {
		return nil, err
	}
	es.logger.Infof(providers.TypeApp, "Created event %q (%d) in channel %q", created.Name, created.ID, channel)
	return created, nil
}

func (es *EventService) EditEvent(ctx context.Context, channel string, eventID int64, data EventUpdate) (*models.Event, error) {
	return es.mutate(ctx, channel, eventID, func(ev *models.Event) error {
		return ev.UpdateDetails(data.Name, data.Date, data.Rule, es.now())
	})
}

func (es *EventService) DeleteEvent(ctx context.Context, channel string, eventID int64) error {
	key := providers.LockKey(channel, eventID)
	release, err := es.locks.Acquire(ctx, key)
	if err != nil {
		return err
	}

	err = es.store.DeleteEvent(channel, eventID)
	release()
	if err != nil {
		return err
	}

	// no future request will reference this key
	es.locks.Evict(key)
	es.logger.Infof(providers.TypeApp, "Deleted event %d from channel %q", eventID, channel)
	return nil
}

func (es *EventService) PatchParticipants(ctx context.Context, channel string, eventID int64, add, remove []string) (*models.Event, error) {
	return es.mutate(ctx, channel, eventID, func(ev *models.Event) error {
		if len(remove) > 0 {
			if err := ev.RemoveParticipants(remove); err != nil {
				return err
			}
		}
		if len(add) > 0 {
			if _, err := ev.AddParticipants(add); err != nil {
				return err
			}
		}
		return nil
	})
}

func (es *EventService) ListChannels(_ context.Context) ([]models.Channel, error) {
	return es.store.ListChannels()
}

// ListEvents and ShowEvent are lock-free reads. Each event copy is
// rolled over before it is observed; the persisted form catches up on
// the next mutation or sweep.
func (es *EventService) ListEvents(_ context.Context, channel string) ([]models.EventSummary, error) {
	events, err := es.store.ListEvents(channel)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.EventSummary, 0, len(events))
	now := es.now()
	for _, ev := range events {
		ev.Rollover(now)
		summaries = append(summaries, ev.Summary())
	}
	return summaries, nil
}

func (es *EventService) ShowEvent(_ context.Context, channel string, eventID int64) (*models.Event, error) {
	ev, err := es.store.LoadEvent(channel, eventID)
	if err != nil {
		return nil, err
	}
	ev.Rollover(es.now())
	return ev, nil
}

// SweepRollovers walks every event and persists any pending rollover,
// taking each event's token in turn. Returns how many events advanced.
func (es *EventService) SweepRollovers() int {
	swept := 0
	for _, ref := range es.store.EventRefs() {
		changed, err := es.sweepOne(ref)
		if err != nil {
			es.logger.Warnf(providers.TypeApp, "Rollover sweep skipped %s/%d: %s", ref.Channel, ref.ID, err)
			continue
		}
		if changed {
			swept++
		}
	}
	return swept
}

func (es *EventService) sweepOne(ref store.EventRef) (bool, error) {
	release, err := es.locks.Acquire(context.Background(), providers.LockKey(ref.Channel, ref.ID))
	if err != nil {
		return false, err
	}
	defer release()

	ev, err := es.store.LoadEvent(ref.Channel, ref.ID)
	if err != nil {
		// deleted between enumeration and lock, nothing to do
		return false, nil
	}
	if !ev.Rollover(es.now()) {
		return false, nil
	}
	if err := es.store.SaveEvent(ev); err != nil {
		return false, err
	}

	// cached views of this event show the previous round
	es.cache.Del(providers.EventsCacheKey(ref.Channel))
	es.cache.Del(providers.EventCacheKey(ref.Channel, ref.ID))
	return true, nil
}

func (es *EventService) CountEvents() int {
	return es.store.CountEvents()
}

func (es *EventService) CountChannels() int {
	return es.store.CountChannels()
}
