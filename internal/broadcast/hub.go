package broadcast

import (
	"context"
	"sync"

	"aims/internal/audit"
)

// Hub fans events out to in-process subscribers (the SSE stream endpoint).
// Subscriber channels are buffered; a subscriber that cannot keep up loses
// events rather than blocking the publisher, and catches up via polling.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan audit.EventDTO
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[int]chan audit.EventDTO),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called
// to release the channel; after cancel the channel is closed.
func (h *Hub) Subscribe() (<-chan audit.EventDTO, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan audit.EventDTO, h.buffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish implements Sink. It never blocks.
func (h *Hub) Publish(_ context.Context, dto audit.EventDTO) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- dto:
		default:
			// Slow subscriber; it recovers through catch-up.
		}
	}
	return nil
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
