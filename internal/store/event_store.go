package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"pickd/internal/models"
)

// EventRef identifies an event for enumeration without copying it.
type EventRef struct {
	Channel string
	ID      int64
}

// EventStoreInterface is the storage contract consumed by the service
// layer. Loads return deep copies; a copy mutated by a caller only
// becomes visible after SaveEvent, so readers never observe a write in
// progress.
type EventStoreInterface interface {
	LoadEvent(channel string, id int64) (*models.Event, error)
	SaveEvent(event *models.Event) error
	CreateEvent(event *models.Event) (*models.Event, error)
	ListEvents(channel string) ([]*models.Event, error)
	DeleteEvent(channel string, id int64) error
	ListChannels() ([]models.Channel, error)
	EventRefs() []EventRef
	CountEvents() int
	CountChannels() int
	Snapshot() *models.Storage
	Restore(st *models.Storage)
}

type EventStore struct {
	mu            sync.RWMutex
	channels      map[string]*models.ChannelData
	nextEventID   int64
	nextChannelID int64
}

func NewEventStore() EventStoreInterface {
	return &EventStore{
		channels:      make(map[string]*models.ChannelData),
		nextEventID:   1,
		nextChannelID: 1,
	}
}

func (s *EventStore) LoadEvent(channel string, id int64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, err := s.find(channel, id)
	if err != nil {
		return nil, err
	}
	return ev.Clone(), nil
}

// find must be called with the mutex held.
func (s *EventStore) find(channel string, id int64) (*models.Event, error) {
	cd, ok := s.channels[channel]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q", models.ErrNotFound, channel)
	}
	ev, ok := cd.Events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %d in channel %q", models.ErrNotFound, id, channel)
	}
	return ev, nil
}

func (s *EventStore) SaveEvent(event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd, ok := s.channels[event.Channel]
	if !ok {
		return fmt.Errorf("%w: channel %q", models.ErrNotFound, event.Channel)
	}
	if _, ok := cd.Events[event.ID]; !ok {
		return fmt.Errorf("%w: event %d in channel %q", models.ErrNotFound, event.ID, event.Channel)
	}
	cd.Events[event.ID] = event.Clone()
	return nil
}

// CreateEvent assigns a fresh id and stores the event, creating the
// channel implicitly on its first event. Event names are unique
// case-insensitively within a channel.
func (s *EventStore) CreateEvent(event *models.Event) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd, ok := s.channels[event.Channel]
	if !ok {
		cd = &models.ChannelData{
			Channel: models.Channel{ID: s.nextChannelID, Name: event.Channel},
			Events:  make(map[int64]*models.Event),
		}
		s.nextChannelID++
		s.channels[event.Channel] = cd
	}

	for _, existing := range cd.Events {
		if strings.EqualFold(existing.Name, event.Name) {
			return nil, fmt.Errorf("%w: event %q already exists in channel %q", models.ErrConflict, event.Name, event.Channel)
		}
	}

	stored := event.Clone()
	stored.ID = s.nextEventID
	s.nextEventID++
	cd.Events[stored.ID] = stored

	return stored.Clone(), nil
}

func (s *EventStore) ListEvents(channel string) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.channels[channel]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q", models.ErrNotFound, channel)
	}

	out := make([]*models.Event, 0, len(cd.Events))
	for _, ev := range cd.Events {
		out = append(out, ev.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteEvent removes the event and its participants. A channel with no
// remaining events is dropped from the registry.
func (s *EventStore) DeleteEvent(channel string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd, ok := s.channels[channel]
	if !ok {
		return fmt.Errorf("%w: channel %q", models.ErrNotFound, channel)
	}
	if _, ok := cd.Events[id]; !ok {
		return fmt.Errorf("%w: event %d in channel %q", models.ErrNotFound, id, channel)
	}
	delete(cd.Events, id)
	if len(cd.Events) == 0 {
		delete(s.channels, channel)
	}
	return nil
}

func (s *EventStore) ListChannels() ([]models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Channel, 0, len(s.channels))
	for _, cd := range s.channels {
		out = append(out, cd.Channel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *EventStore) EventRefs() []EventRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EventRef, 0, 16)
	for name, cd := range s.channels {
		for id := range cd.Events {
			out = append(out, EventRef{Channel: name, ID: id})
		}
	}
	return out
}

func (s *EventStore) CountEvents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, cd := range s.channels {
		total += len(cd.Events)
	}
	return total
}

func (s *EventStore) CountChannels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

func (s *EventStore) Snapshot() *models.Storage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make(map[string]*models.ChannelData, len(s.channels))
	for name, cd := range s.channels {
		events := make(map[int64]*models.Event, len(cd.Events))
		for id, ev := range cd.Events {
			events[id] = ev.Clone()
		}
		channels[name] = &models.ChannelData{Channel: cd.Channel, Events: events}
	}
	return &models.Storage{
		Version:  models.StorageVersion,
		NextID:   s.nextEventID,
		Channels: channels,
	}
}

func (s *EventStore) Restore(st *models.Storage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels = make(map[string]*models.ChannelData, len(st.Channels))
	maxChannelID := int64(0)
	for name, cd := range st.Channels {
		if cd.Events == nil {
			cd.Events = make(map[int64]*models.Event)
		}
		s.channels[name] = cd
		if cd.Channel.ID > maxChannelID {
			maxChannelID = cd.Channel.ID
		}
	}
	s.nextEventID = max(st.NextID, 1)
	s.nextChannelID = maxChannelID + 1
}
