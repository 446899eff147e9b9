package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// WebSocketDialer connects to the notification gateway. The token travels
// as an Authorization: Bearer header on the handshake.
type WebSocketDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context, token string, events ConnEvents) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	ws, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, d.URL)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	c := &wsConn{ws: ws, done: make(chan struct{})}
	go c.readLoop(events)
	return c, nil
}

type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closing atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func (c *wsConn) readLoop(events ConnEvents) {
	defer close(c.done)
	for {
		var env models.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			_ = c.ws.Close()
			if !c.closing.Load() {
				events.Closed(err)
			}
			return
		}
		events.Deliver(env)
	}
}

func (c *wsConn) Send(env models.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(env)
}

// Close sends a close frame and drops the socket without waiting for the
// peer. It returns once the read goroutine has exited.
func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		c.closing.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	<-c.done
	return err
}

// PollingDialer emulates the realtime channel over long polling of
// /api/v1/notifications/poll. It is the fallback when a WebSocket cannot be
// established.
type PollingDialer struct {
	APIURL string
	HTTP   *http.Client
	Wait   time.Duration
}

func (d *PollingDialer) Dial(ctx context.Context, token string, events ConnEvents) (Conn, error) {
	wait := d.Wait
	if wait <= 0 {
		wait = 25 * time.Second
	}
	httpClient := d.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: wait + 10*time.Second}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &pollConn{
		endpoint: strings.TrimRight(d.APIURL, "/") + "/api/v1/notifications/poll",
		token:    token,
		http:     httpClient,
		wait:     wait,
		events:   events,
		ctx:      loopCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	// The first poll authenticates and drains whatever queued up.
	initial, err := c.poll(ctx, 0)
	if err != nil {
		cancel()
		return nil, err
	}
	for _, env := range initial {
		events.Deliver(env)
	}

	go c.loop()
	return c, nil
}

type pollConn struct {
	endpoint string
	token    string
	http     *http.Client
	wait     time.Duration
	events   ConnEvents

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *pollConn) loop() {
	defer close(c.done)
	for {
		batch, err := c.poll(c.ctx, c.wait)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			c.events.Closed(err)
			return
		}
		for _, env := range batch {
			c.events.Deliver(env)
		}
	}
}

func (c *pollConn) poll(ctx context.Context, wait time.Duration) ([]models.Envelope, error) {
	u := c.endpoint + "?" + url.Values{"wait": []string{wait.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out models.PollResponse
	if err := c.roundTrip(req, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Send posts env and delivers the server's reply like any other event.
func (c *pollConn) Send(env models.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeWait)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var reply models.Envelope
	if err := c.roundTrip(req, &reply); err != nil {
		return err
	}
	if reply.Event != "" {
		c.events.Deliver(reply)
	}
	return nil
}

func (c *pollConn) roundTrip(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, c.endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *pollConn) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// FallbackDialer tries Primary and, unless the token itself was rejected,
// falls back to Secondary.
type FallbackDialer struct {
	Primary   Dialer
	Secondary Dialer
}

func (d *FallbackDialer) Dial(ctx context.Context, token string, events ConnEvents) (Conn, error) {
	conn, err := d.Primary.Dial(ctx, token, events)
	if err == nil || errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
		return conn, err
	}
	log.Info().Err(err).Msg("WebSocket unavailable, falling back to polling")
	return d.Secondary.Dial(ctx, token, events)
}
