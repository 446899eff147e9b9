package client

import (
	"sync"
	"time"
)

type pendingCall struct {
	timer *time.Timer
	gen   uint64
	fn    func()
}

// Debouncer delays calls until a key has been quiet for the window. At most
// one call is pending per key; scheduling again replaces it.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	gen     uint64
	pending map[string]*pendingCall
	stopped bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, pending: make(map[string]*pendingCall)}
}

// Schedule runs fn after the window unless key is scheduled again first.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending[key] = &pendingCall{
		gen:   gen,
		fn:    fn,
		timer: time.AfterFunc(d.window, func() { d.fire(key, gen) }),
	}
}

// fire runs the call for key if it is still the one scheduled as gen. A
// timer that lost the race with Schedule or Cancel finds a newer
// generation and does nothing.
func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	p.fn()
}

// Cancel drops the pending call for key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Flush runs the pending call for key now, on the calling goroutine.
func (d *Debouncer) Flush(key string) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if ok {
		p.fn()
	}
}

// Stop runs every pending call and refuses new ones.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	calls := make([]func(), 0, len(d.pending))
	for key, p := range d.pending {
		p.timer.Stop()
		calls = append(calls, p.fn)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, fn := range calls {
		fn()
	}
}
