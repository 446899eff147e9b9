package client

import (
	"slices"
	"sync"
)

// Event names a signal published on the Bus.
type Event string

// EventAuthStateChanged fires after every login, register, logout or
// session expiry. It carries no payload; subscribers re-read storage.
const EventAuthStateChanged Event = "auth-state-changed"

// Bus is a synchronous publish/subscribe bus owned by the composition root.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[Event]map[uint64]func()
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Event]map[uint64]func())}
}

// Subscribe registers fn for ev and returns a function that removes it.
func (b *Bus) Subscribe(ev Event, fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[ev] == nil {
		b.handlers[ev] = make(map[uint64]func())
	}
	b.handlers[ev][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[ev], id)
		})
	}
}

// Publish runs every handler of ev on the calling goroutine, in
// subscription order. Handlers run outside the bus lock and may subscribe
// or publish themselves.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.handlers[ev]))
	for id := range b.handlers[ev] {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.handlers[ev][id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
