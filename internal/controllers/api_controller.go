package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"pickd/internal/models"
	"pickd/internal/providers"
	"pickd/internal/services"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger  providers.Logger
	service services.EventServiceInterface
	cache   providers.CacheProviderInterface
	metrics providers.MetricsProviderInterface
}

func NewApiController(logger providers.Logger, service services.EventServiceInterface, cache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
		cache:   cache,
		metrics: metrics,
	}
}

// statusForError maps every domain error kind to its documented status.
func statusForError(err error) int {
	var storeErr *models.StoreError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrAllPicked),
		errors.Is(err, models.ErrEmptyHistory):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.As(err, &storeErr):
		if storeErr.Transient {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func (ac *ApiController) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// storage internals stay in the logs
		ac.logger.Errorf(providers.TypeApp, "Internal error: %s", err)
		msg = "internal error"
	}
	if errors.Is(err, models.ErrBusy) {
		ac.metrics.IncLockTimeouts()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	gson, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		ac.writeError(w, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) invalidate(channel string, eventID int64) {
	ac.cache.Del(providers.ChannelsCacheKey())
	ac.cache.Del(providers.EventsCacheKey(channel))
	if eventID != 0 {
		ac.cache.Del(providers.EventCacheKey(channel, eventID))
	}
}

func eventID(r *http.Request) (int64, error) {
	id, err := cast.ToInt64E(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, models.ErrNotFound
	}
	return id, nil
}

// --- read endpoints ---

func (ac *ApiController) ListChannels(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, providers.ChannelsCacheKey(), func() (any, error) {
		return ac.service.ListChannels(r.Context())
	})
}

func (ac *ApiController) ListEvents(w http.ResponseWriter, r *http.Request) {
	ch := r.PathValue("channel")
	ac.serveFromCacheOrCompute(w, providers.EventsCacheKey(ch), func() (any, error) {
		return ac.service.ListEvents(r.Context(), ch)
	})
}

func (ac *ApiController) ShowEvent(w http.ResponseWriter, r *http.Request) {
	ch := r.PathValue("channel")
	id, err := eventID(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	ac.serveFromCacheOrCompute(w, providers.EventCacheKey(ch, id), func() (any, error) {
		return ac.service.ShowEvent(r.Context(), ch, id)
	})
}

// --- mutating endpoints ---

type createEventRequest struct {
	Name         string   `json:"name"`
	Date         string   `json:"date"`
	Rule         string   `json:"rule"`
	Participants []string `json:"participants"`
}

func (ac *ApiController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	rule, err := models.ParseRecurrenceRule(payload.Rule)
	if err != nil {
		ac.writeError(w, err)
		return
	}
	date, err := time.Parse(time.RFC3339, payload.Date)
	if err != nil {
		ac.writeError(w, errors.Join(models.ErrInvalidInput, err))
		return
	}

	ch := r.PathValue("channel")
	ev, err := ac.service.AddEvent(r.Context(), ch, services.EventCreation{
		Name:         payload.Name,
		Date:         date,
		Rule:         rule,
		Participants: payload.Participants,
	})
	if err != nil {
		ac.writeError(w, err)
		return
	}

	ac.invalidate(ch, ev.ID)
	writeJSON(w, http.StatusCreated, ev)
}

type updateEventRequest struct {
	Name *string `json:"name"`
	Date *string `json:"date"`
	Rule *string `json:"rule"`
}

func (ac *ApiController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	upd := services.EventUpdate{Name: payload.Name}
	if payload.Rule != nil {
		rule, err := models.ParseRecurrenceRule(*payload.Rule)
		if err != nil {
			ac.writeError(w, err)
			return
		}
		upd.Rule = &rule
	}
	if payload.Date != nil {
		date, err := time.Parse(time.RFC3339, *payload.Date)
		if err != nil {
			ac.writeError(w, errors.Join(models.ErrInvalidInput, err))
			return
		}
		upd.Date = &date
	}

	ch := r.PathValue("channel")
	id, err := eventID(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	ev, err := ac.service.EditEvent(r.Context(), ch, id, upd)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	ac.invalidate(ch, id)
	writeJSON(w, http.StatusOK, ev)
}

func (ac *ApiController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ch := r.PathValue("channel")
	id, err := eventID(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	if err := ac.service.DeleteEvent(r.Context(), ch, id); err != nil {
		ac.writeError(w, err)
		return
	}

	ac.invalidate(ch, id)
	w.WriteHeader(http.StatusOK)
}

type patchParticipantsRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

func (ac *ApiController) PatchParticipants(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload patchParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ch := r.PathValue("channel")
	id, err := eventID(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	ev, err := ac.service.PatchParticipants(r.Context(), ch, id, payload.Add, payload.Remove)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	ac.invalidate(ch, id)
	writeJSON(w, http.StatusOK, ev)
}

type pickRequest struct {
	ParticipantID string `json:"participant_id"`
}

// Pick draws a random participant, or marks a specific one when the
// body names a participant id.
func (ac *ApiController) Pick(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload pickRequest
	// an empty body means a random pick; anything else must parse
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ch := r.PathValue("channel")
	id, err := eventID(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	var picked *models.Participant
	if payload.ParticipantID != "" {
		picked, err = ac.service.PickSpecific(r.Context(), ch, id, payload.ParticipantID)
	} else {
		picked, err = ac.service.Pick(r.Context(), ch, id)
	}
	if err != nil {
		ac.writeError(w, err)
		return
	}

	if payload.ParticipantID != "" {
		ac.metrics.IncPicks(string(models.PickManual))
	} else {
		ac.metrics.IncPicks(string(models.PickRandom))
	}
	ac.invalidate(ch, id)
	writeJSON(w, http.StatusOK, picked)
}

func (ac *ApiController) Retry(w http.ResponseWriter, r *http.Request) {
	ch := r.PathValue("channel")
	id, err := eventID(r)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	picked, err := ac.service.Retry(r.Context(), ch, id)
	if err != nil {
		ac.writeError(w, err)
		return
	}

	ac.metrics.IncRetries()
	ac.invalidate(ch, id)
	writeJSON(w, http.StatusOK, picked)
}
