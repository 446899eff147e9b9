package notifications

import (
	"encoding/json"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const sendBuffer = 64

// Client is one websocket connection. readPump and writePump are the only
// goroutines that touch conn; rooms is guarded by the hub mutex.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  uuid.UUID
	role    models.Role
	rooms   map[string]struct{}
	limiter *rate.Limiter

	// Written by writePump before it reads send. Set before the pump starts.
	greeting []byte
	backlog  [][]byte
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role models.Role) *Client {
	limit := rate.Inf
	if hub.cfg.MessagesPerSec > 0 {
		limit = rate.Limit(hub.cfg.MessagesPerSec)
	}
	burst := hub.cfg.MessageBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		userID:  userID,
		role:    role,
		rooms:   make(map[string]struct{}),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) pongWait() time.Duration {
	if c.hub.cfg.PingInterval <= 0 {
		return 60 * time.Second
	}
	return 2 * c.hub.cfg.PingInterval
}

func (c *Client) reply(env models.Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.hub.send(c, msg)
}

// readPump handles inbound frames until the connection fails, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	if c.hub.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("Websocket read failed")
			}
			return
		}

		if !c.limiter.Allow() {
			c.reply(errorEnvelope("rate limit exceeded"))
			continue
		}

		reply, join, leave := respond(raw)
		for _, room := range join {
			c.hub.join(c, room)
		}
		for _, room := range leave {
			c.hub.leave(c, room)
		}
		if len(join) > 0 || len(leave) > 0 {
			log.Debug().
				Str("client_id", c.id).
				Strs("join", join).
				Strs("leave", leave).
				Msg("Client subscriptions changed")
		}
		c.reply(reply)
	}
}

// writePump forwards queued messages and keeps the connection alive with
// pings. It exits when send is closed or a write fails.
func (c *Client) writePump() {
	interval := c.hub.cfg.PingInterval
	if interval <= 0 {
		interval = 25 * time.Second
	}
	writeTimeout := c.hub.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if !c.flushBacklog(writeTimeout) {
		return
	}

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flushBacklog writes the greeting and the mailbox backlog. Entries that
// could not be written go back to the mailbox.
func (c *Client) flushBacklog(writeTimeout time.Duration) bool {
	if c.greeting != nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, c.greeting); err != nil {
			c.hub.requeue(c.userID, c.backlog)
			return false
		}
	}
	for i, msg := range c.backlog {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.requeue(c.userID, c.backlog[i:])
			return false
		}
	}
	if len(c.backlog) > 0 {
		log.Debug().Str("client_id", c.id).Int("count", len(c.backlog)).Msg("Mailbox flushed")
	}
	c.greeting, c.backlog = nil, nil
	return true
}
