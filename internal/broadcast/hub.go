// Package broadcast carries store change notifications between instances.
package broadcast

import (
	"context"
	"sync"

	"coin-service/internal/store"
)

// Hub fans changes out to every subscriber in the process, the publisher's
// own subscription included; receivers filter by origin.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan store.Change
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan store.Change)}
}

// Publish blocks until every subscriber accepted the change or ctx ends.
func (h *Hub) Publish(ctx context.Context, c store.Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *Hub) Subscribe(buffer int) (<-chan store.Change, func()) {
	ch := make(chan store.Change, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}
