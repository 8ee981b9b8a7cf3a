package events

import (
	"encoding/json"
	"sync"
)

// Hub is an in-process publish/subscribe bus. Subscribers receive events on
// buffered channels and may filter by name.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]filter
}

type filter map[string]struct{}

func (f filter) match(name string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[name]
	return ok
}

func NewHub() *Hub { return &Hub{subs: make(map[chan Event]filter)} }

// Subscribe returns a channel receiving events with one of the given names,
// or every event if no name is given.
func (h *Hub) Subscribe(names ...string) chan Event {
	ch := make(chan Event, 16)
	f := make(filter, len(names))
	for _, n := range names {
		f[n] = struct{}{}
	}
	h.mu.Lock()
	h.subs[ch] = f
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. It is safe to call more than once.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	var b json.RawMessage
	if payload != nil {
		var err error
		b, err = json.Marshal(payload)
		if err != nil {
			return
		}
	}
	msg := Event{Name: name, Data: b}
	h.mu.RLock()
	for ch, f := range h.subs {
		if !f.match(name) {
			continue
		}
		// Non-blocking send; drop if subscriber is slow
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.RUnlock()
}
