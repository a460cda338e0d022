package watch

import (
	"context"
	"sync"

	"casevault/internal/deletion"
	"casevault/pkg/domain"
)

// Hub fans committed transitions out to status waiters subscribed by
// resource id. Each subscription holds only the latest state; a slow waiter
// never blocks the notifier.
type Hub struct {
	mu   sync.Mutex
	subs map[domain.ResourceID]map[*subscription]struct{}
}

type subscription struct {
	ch chan deletion.State
}

func NewHub() *Hub {
	return &Hub{subs: make(map[domain.ResourceID]map[*subscription]struct{})}
}

// Subscribe registers interest in id. The returned func must be called to
// release the subscription.
func (h *Hub) Subscribe(id domain.ResourceID) (<-chan deletion.State, func()) {
	sub := &subscription{ch: make(chan deletion.State, 1)}

	h.mu.Lock()
	set, ok := h.subs[id]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[id] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set := h.subs[id]; set != nil {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, id)
			}
		}
	}
}

// Notify delivers state to every subscriber of its resource id, replacing
// any undelivered older state.
func (h *Hub) Notify(_ context.Context, state deletion.State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[state.ResourceID] {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- state
	}
}

// Subscribers reports the number of live subscriptions for id.
func (h *Hub) Subscribers(id domain.ResourceID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}
