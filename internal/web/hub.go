// Package web serves the browser chat console: a credentials form, the
// conversation, and live agent steps over SSE.
package web

import (
	"sync"
	"time"
)

const maxHistory = 200

// Event is a single event broadcast to SSE clients.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Time    string `json:"time"`
	Data    any    `json:"data,omitempty"`
}

// EventHub broadcasts one session's agent events to its SSE clients.
type EventHub struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
	history []Event
}

// NewEventHub creates a new event hub.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[chan Event]struct{}),
		history: make([]Event, 0, maxHistory),
	}
}

// Publish sends an event to all connected clients and stores it in history.
func (h *EventHub) Publish(e Event) {
	if e.Time == "" {
		e.Time = time.Now().Format(time.RFC3339)
	}

	h.mu.Lock()
	if len(h.history) >= maxHistory {
		h.history = h.history[1:]
	}
	h.history = append(h.history, e)
	h.mu.Unlock()

	h.mu.RLock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			// Slow client; drop rather than stall the agent.
		}
	}
	h.mu.RUnlock()
}

// Subscribe returns a channel of events and an unsubscribe function.
// The caller receives a replay of recent history followed by live events.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	ch := make(chan Event, len(h.history)+64)
	for _, e := range h.history {
		ch <- e
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

func (h *EventHub) subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
