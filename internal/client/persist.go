package client

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Persister keeps a value in memory and writes it to storage under
// "draft:<name>" once edits have been quiet for the debounce window.
type Persister[T any] struct {
	store     Storage
	debouncer *Debouncer
	key       string
	initial   T

	// io serialises storage writes with Clear so an in-flight write can
	// never restore a cleared draft.
	io    sync.Mutex
	mu    sync.Mutex
	value T
	dirty bool
}

// NewPersister loads the stored value for name. A missing or unreadable
// value starts from initial.
func NewPersister[T any](store Storage, debouncer *Debouncer, name string, initial T) *Persister[T] {
	p := &Persister[T]{
		store:     store,
		debouncer: debouncer,
		key:       DraftPrefix + name,
		initial:   initial,
		value:     initial,
	}

	raw, err := getOptional(store, p.key)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("key", p.key).Msg("Failed to load draft")
	case raw != "":
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			log.Warn().Err(err).Str("key", p.key).Msg("Discarding corrupt draft")
		} else {
			p.value = v
		}
	}
	return p
}

func (p *Persister[T]) Value() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set updates the value now and schedules the write.
func (p *Persister[T]) Set(v T) {
	p.mu.Lock()
	p.value = v
	p.dirty = true
	p.mu.Unlock()

	p.debouncer.Schedule(p.key, p.write)
}

// write stores the value current at the time it runs, so a late timer
// never writes an older value. Nothing is written after Clear until the
// next Set.
func (p *Persister[T]) write() {
	p.io.Lock()
	defer p.io.Unlock()

	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	raw, err := json.Marshal(p.value)
	p.dirty = false
	p.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("key", p.key).Msg("Failed to encode draft")
		return
	}
	if err := p.store.Set(map[string]string{p.key: string(raw)}); err != nil {
		log.Error().Err(err).Str("key", p.key).Msg("Failed to save draft")
	}
}

// Clear cancels the pending write, removes the stored value and resets to
// the initial value.
func (p *Persister[T]) Clear() error {
	p.debouncer.Cancel(p.key)

	p.io.Lock()
	defer p.io.Unlock()

	p.mu.Lock()
	p.value = p.initial
	p.dirty = false
	p.mu.Unlock()

	return p.store.Delete(p.key)
}

// Flush writes a pending change immediately.
func (p *Persister[T]) Flush() {
	p.debouncer.Flush(p.key)
}
