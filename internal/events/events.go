// Package events is the notification fan-out: an in-process bus for
// listeners (email delivery, web push) plus a WebSocket hub pushing the same
// events to connected manager dashboards. Emit is fire-and-forget; emitters
// never block on, or learn about, delivery.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is a domain event broadcast to listeners and dashboard sockets.
type Message struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// Handler processes one event. Handlers run on their own goroutines; a slow
// handler never stalls the emitter or other handlers.
type Handler func(Message)

// Bus routes emitted events to subscribed handlers and the socket hub.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	hub      *Hub
	logger   *slog.Logger
}

func NewBus(hub *Hub, logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		hub:      hub,
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

// Emit dispatches an event to all handlers for its name and broadcasts it to
// connected dashboard clients. It returns immediately.
func (b *Bus) Emit(name string, payload map[string]any) {
	msg := Message{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	b.mu.RLock()
	handlers := b.handlers[name]
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic", "event", name, "panic", r)
				}
			}()
			h(msg)
		}(h)
	}

	if b.hub != nil {
		data, err := json.Marshal(msg)
		if err != nil {
			b.logger.Error("marshal event", "event", name, "error", err)
			return
		}
		b.hub.Broadcast(data)
	}
}
