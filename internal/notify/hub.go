package notify

import (
	"context"
	"sync"
)

// Hub is the in-process Broker used for single-node deployments and tests.
// Slow subscribers are skipped rather than blocking a publish.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Event
	next int
}

var _ Broker = (*Hub)(nil)

// NewHub initialises an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers a subscriber on the user's channel.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan Event, error) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan Event)
	}
	h.subs[userID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch, nil
}

// Publish fans the event out to the user's live subscribers.
func (h *Hub) Publish(ctx context.Context, userID string, evt Event) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := false
	for _, ch := range h.subs[userID] {
		select {
		case ch <- evt:
			delivered = true
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
	return delivered, nil
}

// Close is a no-op; subscriber channels close with their contexts.
func (h *Hub) Close() error { return nil }
