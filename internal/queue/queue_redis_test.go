package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"
)

func testQueue(t *testing.T, opts Options) (*Queue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, "orders", opts), rdb
}

func testParams() order.Params {
	return order.Params{
		TokenAddress: "TokenMint111111111111111111111111111111111",
		AmountIn:     1000,
		SlippageBps:  50,
	}
}

func TestEnqueueDedup(t *testing.T) {
	q, rdb := testQueue(t, Options{})
	ctx := context.Background()

	if err := q.Enqueue(ctx, "o1", testParams()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "o1", testParams()); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second enqueue err = %v, want ErrDuplicate", err)
	}
	if n, _ := rdb.LLen(ctx, "orders:pending").Result(); n != 1 {
		t.Errorf("pending length = %d, want 1", n)
	}

	// Distinct orders are unaffected by each other's markers.
	if err := q.Enqueue(ctx, "o2", testParams()); err != nil {
		t.Fatalf("distinct order: %v", err)
	}
	if n, _ := rdb.LLen(ctx, "orders:pending").Result(); n != 2 {
		t.Errorf("pending length = %d, want 2", n)
	}
}

func TestRetryPromotion(t *testing.T) {
	q, rdb := testQueue(t, Options{Concurrency: 1, MaxRetries: 3, BackoffBase: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Enqueue(ctx, "o1", testParams()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})
	handler := func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, job.Attempt)
		if len(attempts) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}

	finished := make(chan struct{})
	go func() { q.Run(ctx, handler); close(finished) }()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("failed job was never promoted back to pending")
	}
	cancel()
	<-finished

	mu.Lock()
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("attempts = %v, want [1 2]", attempts)
	}
	mu.Unlock()

	for _, key := range []string{"orders:pending", "orders:active", "orders:dead"} {
		if n, _ := rdb.LLen(context.Background(), key).Result(); n != 0 {
			t.Errorf("%s length = %d, want 0", key, n)
		}
	}
	if n, _ := rdb.ZCard(context.Background(), "orders:delayed").Result(); n != 0 {
		t.Errorf("delayed set length = %d, want 0", n)
	}
}

func TestPermanentFailureDeadLetters(t *testing.T) {
	q, rdb := testQueue(t, Options{Concurrency: 1, MaxRetries: 5, BackoffBase: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Enqueue(ctx, "o1", testParams()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	handled := make(chan int, 8)
	handler := func(_ context.Context, job Job) error {
		handled <- job.Attempt
		return Permanent(errors.New("monitoring window expired"))
	}

	finished := make(chan struct{})
	go func() { q.Run(ctx, handler); close(finished) }()

	select {
	case a := <-handled:
		if a != 1 {
			t.Errorf("first delivery attempt = %d", a)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never delivered")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _ := rdb.LLen(context.Background(), "orders:dead").Result(); n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never dead-lettered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Despite retries remaining, a permanent failure is never redelivered.
	select {
	case a := <-handled:
		t.Fatalf("permanent failure redelivered (attempt %d)", a)
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	<-finished

	if n, _ := rdb.ZCard(context.Background(), "orders:delayed").Result(); n != 0 {
		t.Errorf("delayed set length = %d, want 0", n)
	}
}

func TestIdlePollingKeepsRateBudget(t *testing.T) {
	// One admission token with effectively no refill: if idle claim
	// attempts consumed it, a job arriving after the first empty poll
	// would starve behind the limiter.
	q, _ := testQueue(t, Options{Concurrency: 1, MaxRetries: 1, RateMax: 1, RateWindow: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	handler := func(context.Context, Job) error {
		close(done)
		return nil
	}

	finished := make(chan struct{})
	go func() { q.Run(ctx, handler); close(finished) }()

	// Let the worker sit through at least one full empty claim cycle.
	time.Sleep(2500 * time.Millisecond)

	if err := q.Enqueue(ctx, "o1", testParams()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job starved behind idle polling")
	}
	cancel()
	<-finished
}
