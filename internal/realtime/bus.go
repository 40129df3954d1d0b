package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler receives the raw payload of a push event.
type Handler func(payload json.RawMessage)

type subscription struct {
	id uint64
	fn Handler
}

// bus fans push events out to every subscriber of the event name.
type bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
}

func newBus() *bus {
	return &bus{handlers: make(map[string][]subscription)}
}

func (b *bus) on(event string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[event]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[event]) == 0 {
		delete(b.handlers, event)
	}
}

func (b *bus) off(event string) {
	b.mu.Lock()
	delete(b.handlers, event)
	b.mu.Unlock()
}

// dispatch calls subscribers in registration order and reports how many ran.
func (b *bus) dispatch(event string, payload json.RawMessage) int {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event]))
	copy(subs, b.handlers[event])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(payload)
	}
	return len(subs)
}

// Typed adapts fn to a Handler. Payloads that fail to decode are logged and
// skipped.
func Typed[T any](event string, fn func(T)) Handler {
	return func(payload json.RawMessage) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("realtime payload decode failed")
			return
		}
		fn(v)
	}
}
