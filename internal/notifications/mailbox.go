package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultPollWait bounds how long Poll holds a request open.
const DefaultPollWait = 25 * time.Second

// wake releases every Poll waiting on userID.
func (h *Hub) wake(userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.waiters[userID] {
		close(ch)
	}
	delete(h.waiters, userID)
}

func (h *Hub) addWaiter(userID uuid.UUID) (chan struct{}, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false
	}
	ch := make(chan struct{})
	h.waiters[userID] = append(h.waiters[userID], ch)
	return ch, true
}

func (h *Hub) removeWaiter(userID uuid.UUID, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	chans := h.waiters[userID]
	for i, c := range chans {
		if c == ch {
			h.waiters[userID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(h.waiters[userID]) == 0 {
		delete(h.waiters, userID)
	}
}

// Drain returns and clears the mailbox of userID, oldest first. Entries that
// no longer decode are skipped.
func (h *Hub) Drain(ctx context.Context, userID uuid.UUID) ([]models.Envelope, error) {
	if h.mailbox == nil {
		return []models.Envelope{}, nil
	}

	raw, err := h.mailbox.DrainNotifications(ctx, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to drain mailbox: %w", err)
	}

	events := make([]models.Envelope, 0, len(raw))
	for _, item := range raw {
		var env models.Envelope
		if err := json.Unmarshal(item, &env); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Skipping corrupt mailbox entry")
			continue
		}
		events = append(events, env)
	}
	return events, nil
}

// requeue puts undelivered mailbox entries back, oldest first.
func (h *Hub) requeue(userID uuid.UUID, msgs [][]byte) {
	if h.mailbox == nil || len(msgs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, msg := range msgs {
		if err := h.mailbox.PushNotification(ctx, userID.String(), msg, h.cfg.MailboxSize, h.cfg.MailboxTTL); err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Int("lost", len(msgs)).Msg("Failed to requeue notifications")
			return
		}
	}
	log.Warn().Str("user_id", userID.String()).Int("count", len(msgs)).Msg("Requeued undelivered notifications")
}

// Poll drains the mailbox of userID. When it is empty, Poll waits up to wait
// for new mail, then drains again. It returns an empty slice on timeout.
func (h *Hub) Poll(ctx context.Context, userID uuid.UUID, wait time.Duration) ([]models.Envelope, error) {
	if wait <= 0 {
		return h.Drain(ctx, userID)
	}

	// Register before draining so mail pushed in between still wakes us.
	ch, ok := h.addWaiter(userID)
	if !ok {
		return h.Drain(ctx, userID)
	}
	defer h.removeWaiter(userID, ch)

	events, err := h.Drain(ctx, userID)
	if err != nil || len(events) > 0 {
		return events, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
		return events, nil
	case <-ctx.Done():
		return events, nil
	}
	return h.Drain(ctx, userID)
}

// Reply answers an event posted by a polling client. Polling clients have
// no rooms, so subscribe and unsubscribe are acknowledged without effect.
func (h *Hub) Reply(raw []byte) models.Envelope {
	env, _, _ := respond(raw)
	return env
}

// respond decodes one inbound frame and builds the reply, along with the
// event rooms to join or leave.
func respond(raw []byte) (reply models.Envelope, join, leave []string) {
	var in models.Envelope
	if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
		return errorEnvelope("invalid message"), nil, nil
	}

	switch in.Event {
	case models.EventSubscribe, models.EventUnsubscribe:
		var sub models.Subscription
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &sub); err != nil {
				return errorEnvelope("invalid subscription"), nil, nil
			}
		}
		if sub.Events == nil {
			sub.Events = []string{}
		}
		rooms := make([]string, 0, len(sub.Events))
		for _, name := range sub.Events {
			rooms = append(rooms, eventRoom(name))
		}
		if in.Event == models.EventSubscribe {
			return mustEnvelope(models.EventSubscribed, sub), rooms, nil
		}
		return mustEnvelope(models.EventUnsubscribed, sub), nil, rooms
	case models.EventPing:
		return mustEnvelope(models.EventPong, models.Pong{Timestamp: time.Now().UTC()}), nil, nil
	default:
		return errorEnvelope("unknown event: " + in.Event), nil, nil
	}
}

func errorEnvelope(message string) models.Envelope {
	return mustEnvelope(models.EventError, models.ErrorPayload{Message: message})
}

// mustEnvelope encodes payloads whose types always marshal.
func mustEnvelope(event string, data interface{}) models.Envelope {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		panic(err)
	}
	return env
}
