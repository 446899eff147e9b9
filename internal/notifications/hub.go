// Package notifications implements the realtime notification gateway.
//
// Authenticated clients connect over a websocket and are placed in rooms:
// user:{id} and role:{role} on connect, and event:{name} for every event
// they subscribe to. Services emit events through the Hub, which satisfies
// services.Notifier. Events for a user with no live socket are appended to
// a capped Redis mailbox that the polling transport drains.
package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/middleware"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Mailbox stores events for users that are not connected. *database.RedisDB
// implements it.
type Mailbox interface {
	PushNotification(ctx context.Context, userID string, payload []byte, max int, ttl time.Duration) error
	DrainNotifications(ctx context.Context, userID string) ([][]byte, error)
}

// Delivery outcomes recorded in the notifications_sent_total metric.
const (
	deliverySocket  = "socket"
	deliveryMailbox = "mailbox"
	deliveryDropped = "dropped"
)

func userRoom(id uuid.UUID) string { return "user:" + id.String() }
func roleRoom(role models.Role) string { return "role:" + string(role) }
func eventRoom(event string) string { return "event:" + event }

// Hub owns every live connection and the rooms they are in. All state is
// guarded by mu; delivery never blocks on a client. A client whose send
// buffer is full is dropped.
type Hub struct {
	cfg     config.NotificationsConfig
	mailbox Mailbox

	mu      sync.Mutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	waiters map[uuid.UUID][]chan struct{}
	closed  bool
}

// NewHub returns an empty hub. mailbox may be nil, in which case events for
// offline users are dropped.
func NewHub(cfg config.NotificationsConfig, mailbox Mailbox) *Hub {
	return &Hub{
		cfg:     cfg,
		mailbox: mailbox,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		waiters: make(map[uuid.UUID][]chan struct{}),
	}
}

// register adds c and joins its user and role rooms. It reports false once
// the hub is closed.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.joinLocked(c, userRoom(c.userID))
	h.joinLocked(c, roleRoom(c.role))
	middleware.SetWebsocketConnections(float64(len(h.clients)))
	return true
}

// unregister removes c from every room and closes its send channel. It is
// safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	middleware.SetWebsocketConnections(float64(len(h.clients)))

	log.Info().
		Str("user_id", c.userID.String()).
		Str("client_id", c.id).
		Msg("Client disconnected")
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.joinLocked(c, room)
	}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// sendLocked queues msg for c, dropping c when its buffer is full.
func (h *Hub) sendLocked(c *Client, msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		log.Warn().
			Str("user_id", c.userID.String()).
			Str("client_id", c.id).
			Msg("Dropping slow notification client")
		h.removeLocked(c)
		return false
	}
}

// send queues msg for a single client.
func (h *Hub) send(c *Client, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.sendLocked(c, msg)
	}
}

// emit delivers msg to every member of room and returns how many clients
// accepted it. An empty room matches nobody.
func (h *Hub) emit(room string, msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	delivered := 0
	for _, c := range members {
		if h.sendLocked(c, msg) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) emitAll(msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	delivered := 0
	for _, c := range all {
		if h.sendLocked(c, msg) {
			delivered++
		}
	}
	return delivered
}

func encode(event string, data interface{}) ([]byte, error) {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// NotifyUser sends an event to every socket of userID. When the user has no
// socket the event goes to their mailbox instead.
func (h *Hub) NotifyUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) {
	msg, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to encode notification")
		return
	}

	if h.emit(userRoom(userID), msg) > 0 {
		middleware.RecordNotification(event, deliverySocket)
		log.Debug().Str("user_id", userID.String()).Str("event", event).Msg("Notification delivered")
		return
	}

	if h.mailbox == nil {
		middleware.RecordNotification(event, deliveryDropped)
		return
	}
	if err := h.mailbox.PushNotification(ctx, userID.String(), msg, h.cfg.MailboxSize, h.cfg.MailboxTTL); err != nil {
		middleware.RecordNotification(event, deliveryDropped)
		log.Error().Err(err).Str("user_id", userID.String()).Str("event", event).Msg("Failed to store notification")
		return
	}
	middleware.RecordNotification(event, deliveryMailbox)
	h.wake(userID)
}

// NotifyRole sends an event to every connected user with role. Offline
// users are not mailed.
func (h *Hub) NotifyRole(_ context.Context, role models.Role, event string, data interface{}) {
	msg, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to encode notification")
		return
	}
	n := h.emit(roleRoom(role), msg)
	middleware.RecordNotification(event, deliverySocket)
	log.Info().Str("role", string(role)).Str("event", event).Int("recipients", n).Msg("Notification sent to role")
}

// Publish sends an event to the clients that subscribed to it.
func (h *Hub) Publish(event string, data interface{}) int {
	msg, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to encode notification")
		return 0
	}
	n := h.emit(eventRoom(event), msg)
	middleware.RecordNotification(event, deliverySocket)
	return n
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data interface{}) int {
	msg, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to encode notification")
		return 0
	}
	n := h.emitAll(msg)
	middleware.RecordNotification(event, deliverySocket)
	log.Info().Str("event", event).Int("recipients", n).Msg("Notification broadcast")
	return n
}

// Announce delivers an admin broadcast to the audience it names.
func (h *Hub) Announce(ctx context.Context, b models.Broadcast) int {
	payload := models.Notification{
		Title:     b.Title,
		Message:   b.Message,
		Level:     b.Level,
		Timestamp: time.Now().UTC(),
	}
	switch {
	case b.Role != "":
		h.mu.Lock()
		n := len(h.rooms[roleRoom(b.Role)])
		h.mu.Unlock()
		h.NotifyRole(ctx, b.Role, models.EventNotification, payload)
		return n
	case b.Topic != "":
		return h.Publish(b.Topic, payload)
	default:
		return h.Broadcast(models.EventNotification, payload)
	}
}

// StreamChunk sends one piece of a streamed reply to userID.
func (h *Hub) StreamChunk(ctx context.Context, userID uuid.UUID, sessionID, chunk string) {
	h.NotifyUser(ctx, userID, models.EventChatChunk, models.ChatChunk{
		SessionID: sessionID,
		Chunk:     chunk,
		Timestamp: time.Now().UTC(),
	})
}

// StreamComplete sends the final chunk of a streamed reply.
func (h *Hub) StreamComplete(ctx context.Context, userID uuid.UUID, sessionID, fullResponse string) {
	h.NotifyUser(ctx, userID, models.EventChatChunk, models.ChatChunk{
		SessionID:    sessionID,
		Done:         true,
		FullResponse: fullResponse,
		Timestamp:    time.Now().UTC(),
	})
	log.Info().Str("user_id", userID.String()).Str("session_id", sessionID).Msg("Chat stream completed")
}

// StreamError reports a failed stream to userID.
func (h *Hub) StreamError(ctx context.Context, userID uuid.UUID, sessionID, message string) {
	h.NotifyUser(ctx, userID, models.EventChatError, models.ChatError{
		SessionID: sessionID,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
	log.Error().Str("user_id", userID.String()).Str("session_id", sessionID).Str("error", message).Msg("Chat stream failed")
}

// ConnectedClients returns the number of live sockets.
func (h *Hub) ConnectedClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// IsUserConnected reports whether userID has at least one live socket.
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[userRoom(userID)]) > 0
}

// Stats summarises the live connections.
func (h *Hub) Stats() models.NotificationStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make(map[uuid.UUID]struct{}, len(h.clients))
	for c := range h.clients {
		users[c.userID] = struct{}{}
	}
	return models.NotificationStats{
		ConnectedClients: len(h.clients),
		ConnectedUsers:   len(users),
	}
}

// Close disconnects every client. Further connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	for id, chans := range h.waiters {
		for _, ch := range chans {
			close(ch)
		}
		delete(h.waiters, id)
	}
}
