package client

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/rs/zerolog/log"
)

// State is the realtime connection state.
type State int

const (
	StateNoToken State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "NO_TOKEN"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// ErrUnauthorized is returned by a Dialer whose handshake was rejected
// because of the token.
var ErrUnauthorized = errors.New("realtime handshake unauthorized")

const defaultDialTimeout = 10 * time.Second

// Conn is one live realtime connection.
type Conn interface {
	Send(env models.Envelope) error
	Close() error
}

// ConnEvents receives what a connection reads. Closed is called at most
// once, when the connection ends without Close being called.
type ConnEvents interface {
	Deliver(env models.Envelope)
	Closed(err error)
}

// Dialer opens a connection authenticated with token.
type Dialer interface {
	Dial(ctx context.Context, token string, events ConnEvents) (Conn, error)
}

// ListenerID identifies a handler registered with On.
type ListenerID uint64

// RealtimeManager keeps at most one realtime connection, rebuilt whenever
// the credentials change. Every change bumps a version; a single goroutine
// applies the latest version by closing the current connection and dialing
// again with the token read fresh from storage. Nothing is retried on a
// timer: after a failure the manager stays DISCONNECTED until the next
// version bump.
type RealtimeManager struct {
	store       Storage
	dialer      Dialer
	dialTimeout time.Duration
	unsubscribe func()

	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu             sync.Mutex
	version        uint64
	applied        uint64
	settled        uint64
	state          State
	conn           Conn
	connVersion    uint64
	dialCancel     context.CancelFunc
	started        bool
	closed         bool
	nextID         ListenerID
	listeners      map[string]map[ListenerID]func(json.RawMessage)
	stateListeners map[ListenerID]func(State)
}

// NewRealtimeManager creates a manager that reconnects on every
// EventAuthStateChanged published on bus. Call Start to begin.
func NewRealtimeManager(store Storage, bus *Bus, dialer Dialer, dialTimeout time.Duration) *RealtimeManager {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &RealtimeManager{
		store:          store,
		dialer:         dialer,
		dialTimeout:    dialTimeout,
		trigger:        make(chan struct{}, 1),
		ctx:            ctx,
		cancel:         cancel,
		listeners:      make(map[string]map[ListenerID]func(json.RawMessage)),
		stateListeners: make(map[ListenerID]func(State)),
	}
	if bus != nil {
		m.unsubscribe = bus.Subscribe(EventAuthStateChanged, m.Reconnect)
	}
	return m
}

// Start launches the evaluation goroutine and connects with the stored
// token, if any.
func (m *RealtimeManager) Start() {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()
	m.Reconnect()
}

// Reconnect requests a rebuild of the connection. An in-flight dial is
// abandoned.
func (m *RealtimeManager) Reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.version++
	if m.dialCancel != nil {
		m.dialCancel()
	}
	m.mu.Unlock()

	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Close tears down the connection and stops the manager. It is immediate:
// nothing queued is drained.
func (m *RealtimeManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.version++
	m.mu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	m.setState(StateDisconnected, 0, true)
}

func (m *RealtimeManager) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.trigger:
			m.evaluate()
		}
	}
}

func (m *RealtimeManager) evaluate() {
	m.mu.Lock()
	version := m.version
	if version == m.applied || m.closed {
		m.mu.Unlock()
		return
	}
	m.applied = version
	old := m.conn
	m.conn = nil
	m.mu.Unlock()
	defer m.settle(version)

	if old != nil {
		if err := old.Close(); err != nil {
			log.Debug().Err(err).Msg("Closing realtime connection")
		}
	}

	token, err := getOptional(m.store, KeyAccessToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read access token")
		token = ""
	}
	if token == "" {
		m.setState(StateNoToken, version, false)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
	m.mu.Lock()
	if m.version != version {
		m.mu.Unlock()
		cancel()
		return
	}
	m.dialCancel = cancel
	m.mu.Unlock()

	m.setState(StateConnecting, version, false)
	conn, err := m.dialer.Dial(ctx, token, &connEvents{m: m, version: version})
	cancel()

	m.mu.Lock()
	m.dialCancel = nil
	if m.version != version || m.closed {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		log.Warn().Err(err).Msg("Realtime connection failed")
		m.setState(StateDisconnected, version, false)
		return
	}
	m.conn = conn
	m.connVersion = version
	m.mu.Unlock()

	log.Debug().Msg("Realtime connected")
	m.setState(StateConnected, version, false)
}

// settle records that the evaluation of version has finished.
func (m *RealtimeManager) settle(version uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = max(m.settled, version)
}

// Idle reports whether the manager has finished acting on the latest
// trigger: every Reconnect or auth signal so far has been evaluated and its
// dial, if any, has completed or failed. A new trigger makes it false until
// that evaluation settles.
//
//	rt.Start()
//	for !rt.Idle() {
//		time.Sleep(10 * time.Millisecond)
//	}
//	fmt.Println(rt.State())
func (m *RealtimeManager) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settled == m.version
}

// setState moves to s unless a newer version was requested meanwhile.
func (m *RealtimeManager) setState(s State, version uint64, force bool) {
	m.mu.Lock()
	if (!force && m.version != version) || m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	ids := make([]ListenerID, 0, len(m.stateListeners))
	for id := range m.stateListeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.stateListeners[id])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

type connEvents struct {
	m       *RealtimeManager
	version uint64
}

func (e *connEvents) Deliver(env models.Envelope) { e.m.dispatch(e.version, env) }
func (e *connEvents) Closed(err error)            { e.m.connClosed(e.version, err) }

func (m *RealtimeManager) dispatch(version uint64, env models.Envelope) {
	m.mu.Lock()
	if m.closed || m.version != version {
		m.mu.Unlock()
		return
	}
	handlers := m.listeners[env.Event]
	ids := make([]ListenerID, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(json.RawMessage), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, handlers[id])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(env.Data)
	}
}

func (m *RealtimeManager) connClosed(version uint64, err error) {
	m.mu.Lock()
	if m.conn == nil || m.connVersion != version {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	log.Warn().Err(err).Msg("Realtime connection lost")
	m.setState(StateDisconnected, version, false)
}

// SendMessage sends event to the server. It does nothing unless connected
// and nothing is queued.
func (m *RealtimeManager) SendMessage(event string, payload interface{}) {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()
	if conn == nil || !connected {
		return
	}

	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to encode realtime message")
		return
	}
	if err := conn.Send(env); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("Failed to send realtime message")
	}
}

// On registers handler for event. Handlers run on the connection's read
// goroutine, outside the manager lock.
func (m *RealtimeManager) On(event string, handler func(data json.RawMessage)) ListenerID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	if m.listeners[event] == nil {
		m.listeners[event] = make(map[ListenerID]func(json.RawMessage))
	}
	m.listeners[event][m.nextID] = handler
	return m.nextID
}

// Off removes the given handlers for event, or all of them when no ids are
// passed.
func (m *RealtimeManager) Off(event string, ids ...ListenerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) == 0 {
		delete(m.listeners, event)
		return
	}
	for _, id := range ids {
		delete(m.listeners[event], id)
	}
	if len(m.listeners[event]) == 0 {
		delete(m.listeners, event)
	}
}

// OnStateChange registers fn for state transitions and returns a function
// that removes it.
func (m *RealtimeManager) OnStateChange(fn func(State)) (remove func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.stateListeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateListeners, id)
	}
}

func (m *RealtimeManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
