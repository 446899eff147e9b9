package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NotificationHub is implemented by *notifications.Hub.
type NotificationHub interface {
	Poll(ctx context.Context, userID uuid.UUID, wait time.Duration) ([]models.Envelope, error)
	Reply(raw []byte) models.Envelope
	Stats() models.NotificationStats
	Announce(ctx context.Context, b models.Broadcast) int
}

// NotificationHandler serves the polling transport and the admin
// notification endpoints.
type NotificationHandler struct {
	hub     NotificationHub
	maxWait time.Duration
}

// NewNotificationHandler creates the handler. maxWait caps the long poll;
// it must stay below the server write timeout.
func NewNotificationHandler(hub NotificationHub, maxWait time.Duration) *NotificationHandler {
	return &NotificationHandler{hub: hub, maxWait: maxWait}
}

// Poll returns the events queued for the caller while they had no socket.
// With an empty mailbox the request is held until mail arrives or the wait
// expires. ?wait=<duration> shortens the wait; wait=0 returns at once.
//
//	GET /api/v1/notifications/poll?wait=10s
//
//	{"events": [{"event": "application:status-update", "data": {...}}]}
//
// @Router /api/v1/notifications/poll [get]
func (h *NotificationHandler) Poll(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	wait := h.maxWait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			utils.RespondWithError(w, r, http.StatusBadRequest, "wait must be a non-negative duration")
			return
		}
		wait = min(d, h.maxWait)
	}

	events, err := h.hub.Poll(r.Context(), actor.UserID, wait)
	if err != nil {
		log.Error().Err(err).Str("user_id", actor.UserID.String()).Msg("Failed to poll notifications")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to poll notifications")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, models.PollResponse{Events: events})
}

// Send accepts one client event over the polling transport and returns the
// reply the socket would have sent.
//
//	POST /api/v1/notifications/poll
//	{"event": "ping"}
//
// @Router /api/v1/notifications/poll [post]
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentActor(w, r); !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, utils.MaxBodyBytes))
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, h.hub.Reply(raw))
}

// Stats reports the live connection counts. Admin only.
//
// @Router /api/v1/notifications/stats [get]
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, h.hub.Stats())
}

// Broadcast sends an announcement to everyone, to one role or to the
// subscribers of one topic. Admin only.
//
//	POST /api/v1/notifications/broadcast
//	{"title": "Maintenance", "message": "Back at 02:00 UTC", "role": "STUDENT"}
//
// @Router /api/v1/notifications/broadcast [post]
func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var b models.Broadcast
	if err := utils.DecodeJSON(w, r, &b); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	b.Title = strings.TrimSpace(b.Title)
	b.Message = strings.TrimSpace(b.Message)
	if b.Title == "" || b.Message == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "title and message are required")
		return
	}
	if b.Role != "" && !b.Role.Valid() {
		utils.RespondWithError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	if b.Role != "" && b.Topic != "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "role and topic are mutually exclusive")
		return
	}

	recipients := h.hub.Announce(r.Context(), b)
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":    "Broadcast sent",
		"recipients": recipients,
	})
}
