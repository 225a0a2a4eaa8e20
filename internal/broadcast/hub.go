// Package broadcast fans order status events out to live subscribers. The
// hub is the one piece of state shared between the worker (publishing) and
// the gateway (subscribing/unsubscribing), so it is safe under concurrent
// use from independent goroutines.
package broadcast

import (
	"sync"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"
	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
)

// Observer receives status events for one order. Deliver must not block:
// implementations enqueue to their own buffered channel and drop on
// overflow. Ready reports whether the observer's transport can accept an
// event; not-ready observers are skipped silently.
type Observer interface {
	Ready() bool
	Deliver(evt order.StatusEvent)
}

// Hub maps order ids to their current observer set. Entries are created
// lazily on first subscribe and removed once the set empties; the registry
// has no tie to order lifecycle — an order may finish before or after its
// observers disconnect.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[Observer]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[Observer]struct{}),
	}
}

func (h *Hub) Subscribe(orderID string, obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[orderID]
	if !ok {
		set = make(map[Observer]struct{})
		h.subs[orderID] = set
	}
	set[obs] = struct{}{}
	telemetry.Metrics.ActiveSubscribers.Inc()
}

func (h *Hub) Unsubscribe(orderID string, obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[orderID]
	if !ok {
		return
	}
	if _, ok := set[obs]; !ok {
		return
	}
	delete(set, obs)
	telemetry.Metrics.ActiveSubscribers.Dec()
	if len(set) == 0 {
		delete(h.subs, orderID)
	}
}

// Publish delivers evt to every current subscriber for the order. Delivery
// is synchronous and best-effort: observers whose transport is not ready
// are skipped, and no event is buffered for late subscribers — they catch
// up by reading the order store on connect.
func (h *Hub) Publish(orderID string, evt order.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for obs := range h.subs[orderID] {
		if !obs.Ready() {
			telemetry.Metrics.BroadcastsDropped.Inc()
			continue
		}
		obs.Deliver(evt)
		telemetry.Metrics.BroadcastsSent.Inc()
	}
}

// SubscriberCount reports the current number of observers for an order.
func (h *Hub) SubscriberCount(orderID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[orderID])
}
