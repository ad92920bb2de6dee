package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"pickd/internal/models"
	"pickd/internal/providers"
	"pickd/internal/services"
)

const commandHelp = `available commands:
  list                                       list events in this channel
  show <event-id>                            event details and pick state
  create <name> <date> <rule> [names,...]    create an event (date RFC3339, rule none|daily|weekly|biweekly|monthly|yearly)
  edit <event-id> [name=..] [date=..] [rule=..]
  delete <event-id>
  add <event-id> <names,...>                 add participants
  remove <event-id> <ids,...>                remove participants
  pick <event-id> [participant-name]         pick randomly, or a specific participant
  repick <event-id>                          undo the last pick and draw again
  cancel <event-id>                          undo the last pick without drawing
  help`

// CommandController adapts short-lived chat commands to the same intents
// the REST surface uses. Replies are plain text; the chat gateway owns
// formatting and delivery.
type CommandController struct {
	logger  providers.Logger
	service services.EventServiceInterface
	cache   providers.CacheProviderInterface
	metrics providers.MetricsProviderInterface
}

func NewCommandController(logger providers.Logger, service services.EventServiceInterface, cache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface) *CommandController {
	return &CommandController{
		logger:  logger,
		service: service,
		cache:   cache,
		metrics: metrics,
	}
}

func (cc *CommandController) Execute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	channel := r.PostFormValue("channel_id")
	if channel == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	text := strings.TrimSpace(r.PostFormValue("text"))
	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	var reply string
	var err error
	switch cmd {
	case "list":
		reply, err = cc.handleList(r, channel)
	case "show":
		reply, err = cc.handleShow(r, channel, rest)
	case "create":
		reply, err = cc.handleCreate(r, channel, rest)
	case "edit":
		reply, err = cc.handleEdit(r, channel, rest)
	case "delete":
		reply, err = cc.handleDelete(r, channel, rest)
	case "add":
		reply, err = cc.handlePatch(r, channel, rest, true)
	case "remove":
		reply, err = cc.handlePatch(r, channel, rest, false)
	case "pick":
		reply, err = cc.handlePick(r, channel, rest)
	case "repick":
		reply, err = cc.handleRepick(r, channel, rest)
	case "cancel":
		reply, err = cc.handleCancel(r, channel, rest)
	case "help", "":
		reply = commandHelp
	default:
		reply = fmt.Sprintf("unknown command %q\n%s", cmd, commandHelp)
	}

	if err != nil {
		if errors.Is(err, models.ErrBusy) {
			cc.metrics.IncLockTimeouts()
			reply = "the event is busy right now, try again"
		} else if statusForError(err) == http.StatusInternalServerError {
			cc.logger.Errorf(providers.TypeApp, "Command %q failed: %s", cmd, err)
			reply = "something went wrong"
		} else {
			reply = err.Error()
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reply))
}

func parseEventArg(arg string) (int64, string, error) {
	idStr, rest, _ := strings.Cut(arg, " ")
	id, err := cast.ToInt64E(idStr)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("%w: expected an event id, got %q", models.ErrInvalidInput, idStr)
	}
	return id, strings.TrimSpace(rest), nil
}

func (cc *CommandController) handleList(r *http.Request, channel string) (string, error) {
	events, err := cc.service.ListEvents(r.Context(), channel)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "no events in this channel", nil
		}
		return "", err
	}

	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "#%d %s — %s (%s), %d/%d picked\n",
			ev.ID, ev.Name, ev.Date.Format(time.RFC3339), ev.Rule, ev.Picked, ev.Participants)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (cc *CommandController) handleShow(r *http.Request, channel, args string) (string, error) {
	id, _, err := parseEventArg(args)
	if err != nil {
		return "", err
	}
	ev, err := cc.service.ShowEvent(r.Context(), channel, id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s — %s (%s)\n", ev.ID, ev.Name, ev.Date.Format(time.RFC3339), ev.Rule)
	for _, p := range ev.Participants {
		mark := " "
		if p.Picked {
			mark = "x"
		}
		fmt.Fprintf(&b, "[%s] %s (%s)\n", mark, p.Name, p.ID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (cc *CommandController) handleCreate(r *http.Request, channel, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "", fmt.Errorf("%w: usage: create <name> <date> <rule> [names,...]", models.ErrInvalidInput)
	}

	date, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return "", errors.Join(models.ErrInvalidInput, err)
	}
	rule, err := models.ParseRecurrenceRule(fields[2])
	if err != nil {
		return "", err
	}
	var participants []string
	if len(fields) > 3 {
		participants = splitNames(strings.Join(fields[3:], " "))
	}

	ev, err := cc.service.AddEvent(r.Context(), channel, services.EventCreation{
		Name:         fields[0],
		Date:         date,
		Rule:         rule,
		Participants: participants,
	})
	if err != nil {
		return "", err
	}
	cc.invalidate(channel, ev.ID)
	return fmt.Sprintf("created event #%d %s", ev.ID, ev.Name), nil
}

func (cc *CommandController) handleEdit(r *http.Request, channel, args string) (string, error) {
	id, rest, err := parseEventArg(args)
	if err != nil {
		return "", err
	}

	var upd services.EventUpdate
	for _, field := range strings.Fields(rest) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return "", fmt.Errorf("%w: expected key=value, got %q", models.ErrInvalidInput, field)
		}
		switch key {
		case "name":
			v := value
			upd.Name = &v
		case "date":
			date, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return "", errors.Join(models.ErrInvalidInput, err)
			}
			upd.Date = &date
		case "rule":
			rule, err := models.ParseRecurrenceRule(value)
			if err != nil {
				return "", err
			}
			upd.Rule = &rule
		default:
			return "", fmt.Errorf("%w: unknown field %q", models.ErrInvalidInput, key)
		}
	}

	ev, err := cc.service.EditEvent(r.Context(), channel, id, upd)
	if err != nil {
		return "", err
	}
	cc.invalidate(channel, id)
	return fmt.Sprintf("updated event #%d %s", ev.ID, ev.Name), nil
}

func (cc *CommandController) handleDelete(r *http.Request, channel, args string) (string, error) {
	id, _, err := parseEventArg(args)
	if err != nil {
		return "", err
	}
	if err := cc.service.DeleteEvent(r.Context(), channel, id); err != nil {
		return "", err
	}
	cc.invalidate(channel, id)
	return fmt.Sprintf("deleted event #%d", id), nil
}

func (cc *CommandController) handlePatch(r *http.Request, channel, args string, add bool) (string, error) {
	id, rest, err := parseEventArg(args)
	if err != nil {
		return "", err
	}
	names := splitNames(rest)
	if len(names) == 0 {
		return "", fmt.Errorf("%w: nothing to change", models.ErrInvalidInput)
	}

	var ev *models.Event
	if add {
		ev, err = cc.service.PatchParticipants(r.Context(), channel, id, names, nil)
	} else {
		ev, err = cc.service.PatchParticipants(r.Context(), channel, id, nil, names)
	}
	if err != nil {
		return "", err
	}
	cc.invalidate(channel, id)
	return fmt.Sprintf("event #%d now has %d participant(s)", id, len(ev.Participants)), nil
}

func (cc *CommandController) handlePick(r *http.Request, channel, args string) (string, error) {
	id, rest, err := parseEventArg(args)
	if err != nil {
		return "", err
	}

	var picked *models.Participant
	if rest != "" {
		picked, err = cc.pickByName(r, channel, id, rest)
	} else {
		picked, err = cc.service.Pick(r.Context(), channel, id)
	}
	if err != nil {
		return "", err
	}

	if rest != "" {
		cc.metrics.IncPicks(string(models.PickManual))
	} else {
		cc.metrics.IncPicks(string(models.PickRandom))
	}
	cc.invalidate(channel, id)
	return fmt.Sprintf("%s was picked", picked.Name), nil
}

// pickByName resolves a participant name to its id before the manual
// pick; chat users address people by name, not uuid.
func (cc *CommandController) pickByName(r *http.Request, channel string, id int64, name string) (*models.Participant, error) {
	ev, err := cc.service.ShowEvent(r.Context(), channel, id)
	if err != nil {
		return nil, err
	}
	for _, p := range ev.Participants {
		if strings.EqualFold(p.Name, name) {
			return cc.service.PickSpecific(r.Context(), channel, id, p.ID)
		}
	}
	return nil, fmt.Errorf("%w: participant %q", models.ErrNotFound, name)
}

func (cc *CommandController) handleRepick(r *http.Request, channel, args string) (string, error) {
	id, _, err := parseEventArg(args)
	if err != nil {
		return "", err
	}
	picked, err := cc.service.Retry(r.Context(), channel, id)
	if err != nil {
		return "", err
	}
	cc.metrics.IncRetries()
	cc.invalidate(channel, id)
	return fmt.Sprintf("%s was picked instead", picked.Name), nil
}

func (cc *CommandController) handleCancel(r *http.Request, channel, args string) (string, error) {
	id, _, err := parseEventArg(args)
	if err != nil {
		return "", err
	}
	undone, err := cc.service.CancelPick(r.Context(), channel, id)
	if err != nil {
		return "", err
	}
	cc.invalidate(channel, id)
	return fmt.Sprintf("cancelled the pick of %s", undone.Name), nil
}

func (cc *CommandController) invalidate(channel string, eventID int64) {
	cc.cache.Del(providers.ChannelsCacheKey())
	cc.cache.Del(providers.EventsCacheKey(channel))
	if eventID != 0 {
		cc.cache.Del(providers.EventCacheKey(channel, eventID))
	}
}

func splitNames(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
