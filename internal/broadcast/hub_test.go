package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"
)

// recorder is a test observer collecting delivered events.
type recorder struct {
	mu     sync.Mutex
	ready  bool
	events []order.StatusEvent
}

func newRecorder() *recorder { return &recorder{ready: true} }

func (r *recorder) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *recorder) Deliver(evt order.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func evt(orderID string, status order.Status) order.StatusEvent {
	return order.StatusEvent{OrderID: orderID, Status: status}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	a, b, c := newRecorder(), newRecorder(), newRecorder()

	hub.Subscribe("o1", a)
	hub.Subscribe("o1", b)
	hub.Subscribe("o1", c)

	hub.Publish("o1", evt("o1", order.StatusMonitoring))

	for i, r := range []*recorder{a, b, c} {
		if r.count() != 1 {
			t.Errorf("observer %d got %d events, want 1", i, r.count())
		}
	}

	hub.Unsubscribe("o1", b)
	hub.Publish("o1", evt("o1", order.StatusTriggered))

	if a.count() != 2 || c.count() != 2 {
		t.Errorf("remaining observers should get the second event: a=%d c=%d", a.count(), c.count())
	}
	if b.count() != 1 {
		t.Errorf("unsubscribed observer got %d events, want 1", b.count())
	}
}

func TestPublishIsScopedToOrder(t *testing.T) {
	hub := NewHub()
	a, b := newRecorder(), newRecorder()
	hub.Subscribe("o1", a)
	hub.Subscribe("o2", b)

	hub.Publish("o1", evt("o1", order.StatusConfirmed))

	if a.count() != 1 || b.count() != 0 {
		t.Errorf("events leaked across orders: a=%d b=%d", a.count(), b.count())
	}
}

func TestPublishSkipsNotReadyObservers(t *testing.T) {
	hub := NewHub()
	a, b := newRecorder(), newRecorder()
	b.ready = false

	hub.Subscribe("o1", a)
	hub.Subscribe("o1", b)
	hub.Publish("o1", evt("o1", order.StatusRouting))

	if a.count() != 1 {
		t.Errorf("ready observer got %d events", a.count())
	}
	if b.count() != 0 {
		t.Errorf("not-ready observer got %d events, want 0", b.count())
	}
}

func TestNoReplayForLateSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Publish("o1", evt("o1", order.StatusMonitoring))

	late := newRecorder()
	hub.Subscribe("o1", late)
	if late.count() != 0 {
		t.Errorf("late subscriber got %d replayed events, want 0", late.count())
	}
}

func TestEntryRemovedWhenEmpty(t *testing.T) {
	hub := NewHub()
	a := newRecorder()
	hub.Subscribe("o1", a)
	if hub.SubscriberCount("o1") != 1 {
		t.Fatalf("count = %d", hub.SubscriberCount("o1"))
	}
	hub.Unsubscribe("o1", a)
	if hub.SubscriberCount("o1") != 0 {
		t.Fatalf("count after unsubscribe = %d", hub.SubscriberCount("o1"))
	}
	// Unsubscribing twice must be a no-op.
	hub.Unsubscribe("o1", a)
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			orderID := fmt.Sprintf("o%d", n%4)
			r := newRecorder()
			for j := 0; j < 100; j++ {
				hub.Subscribe(orderID, r)
				hub.Publish(orderID, evt(orderID, order.StatusMonitoring))
				hub.Unsubscribe(orderID, r)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("o%d", i)
		if hub.SubscriberCount(id) != 0 {
			t.Errorf("order %s still has %d subscribers", id, hub.SubscriberCount(id))
		}
	}
}
