// Package queue is a durable, retryable job queue on Redis. One job per
// order, single active owner per job, exponential backoff on failure, and
// rate-limited admission — the same contract the engine previously got from
// a hosted queue, kept small enough to reason about.
//
// Layout per queue name:
//
//	{name}:pending  list  — jobs ready for delivery (LPUSH / BLMOVE)
//	{name}:active   list  — jobs currently owned by a worker
//	{name}:delayed  zset  — jobs scheduled for retry, scored by ready time
//	{name}:dead     list  — jobs that exhausted their retries
//	{name}:job:{id} key   — dedup marker enforcing one job per order
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"
	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
)

// ErrDuplicate is returned by Enqueue when the order already has a job.
var ErrDuplicate = errors.New("job already enqueued for order")

// errPermanent marks handler failures that must not be retried.
var errPermanent = errors.New("permanent job failure")

// Permanent wraps err so the queue sends the job straight to the dead list
// instead of scheduling a retry.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", errPermanent, err)
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}

// Job is a queue-resident reference to an order: the id plus a snapshot of
// the order parameters at submission time.
type Job struct {
	OrderID    string       `json:"orderId"`
	Params     order.Params `json:"params"`
	Attempt    int          `json:"attempt"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
}

// Handler processes one job to completion or failure. A returned error
// triggers the retry policy unless wrapped with Permanent.
type Handler func(ctx context.Context, job Job) error

type Options struct {
	Concurrency int
	MaxRetries  int
	BackoffBase time.Duration
	RateMax     int           // jobs admitted per RateWindow
	RateWindow  time.Duration
}

func (o *Options) defaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.RateMax <= 0 {
		o.RateMax = 100
	}
	if o.RateWindow <= 0 {
		o.RateWindow = time.Minute
	}
}

type Queue struct {
	rdb     *redis.Client
	name    string
	opts    Options
	limiter *rate.Limiter
}

func New(rdb *redis.Client, name string, opts Options) *Queue {
	opts.defaults()
	return &Queue{
		rdb:     rdb,
		name:    name,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(float64(opts.RateMax)/opts.RateWindow.Seconds()), opts.RateMax),
	}
}

func (q *Queue) key(suffix string) string { return q.name + ":" + suffix }

// Enqueue admits exactly one job per order and returns without blocking on
// processing. A second enqueue for the same order returns ErrDuplicate.
func (q *Queue) Enqueue(ctx context.Context, orderID string, params order.Params) error {
	ok, err := q.rdb.SetNX(ctx, q.key("job:"+orderID), "1", 0).Result()
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}

	payload, err := json.Marshal(Job{
		OrderID:    orderID,
		Params:     params,
		Attempt:    0,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.rdb.LPush(ctx, q.key("pending"), payload).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	telemetry.Infof("queue: enqueued order=%s", orderID)
	return nil
}

// Backoff returns the redelivery delay before the given attempt (1-based):
// base, 2*base, 4*base...
func (q *Queue) Backoff(attempt int) time.Duration {
	d := q.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Run consumes jobs with a pool of Concurrency workers until ctx is
// cancelled, then waits for in-flight handlers to return.
func (q *Queue) Run(ctx context.Context, handler Handler) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.promoteLoop(ctx)
	}()

	for i := 0; i < q.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.workerLoop(ctx, handler)
		}()
	}

	wg.Wait()
}

func (q *Queue) workerLoop(ctx context.Context, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		// Single active owner: the claim atomically moves the job from
		// pending to active, so no other worker can see it.
		payload, err := q.rdb.BLMove(ctx, q.key("pending"), q.key("active"), "RIGHT", "LEFT", 2*time.Second).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Errorf("queue: claim failed: %v", err)
			time.Sleep(time.Second)
			continue
		}

		// Admission control charges delivered jobs only; idle claim
		// attempts against an empty queue must not drain the budget.
		waitStart := time.Now()
		if err := q.limiter.Wait(ctx); err != nil {
			cleanup := context.WithoutCancel(ctx)
			q.rdb.LPush(cleanup, q.key("pending"), payload)
			q.rdb.LRem(cleanup, q.key("active"), 1, payload)
			return
		}
		telemetry.Metrics.RateLimiterWait.Record(time.Since(waitStart))

		q.process(ctx, handler, payload)
	}
}

func (q *Queue) process(ctx context.Context, handler Handler, payload string) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		telemetry.Errorf("queue: dropping unreadable job: %v", err)
		q.rdb.LRem(context.WithoutCancel(ctx), q.key("active"), 1, payload)
		return
	}
	job.Attempt++

	telemetry.Metrics.ActiveJobs.Inc()
	err := handler(ctx, job)
	telemetry.Metrics.ActiveJobs.Dec()

	// Bookkeeping must survive shutdown: a job that finished handling may
	// not be left on the active list.
	cleanupCtx := context.WithoutCancel(ctx)
	q.rdb.LRem(cleanupCtx, q.key("active"), 1, payload)

	if err == nil {
		telemetry.Infof("queue: job completed order=%s attempt=%d", job.OrderID, job.Attempt)
		return
	}

	if job.Attempt >= q.opts.MaxRetries || errors.Is(err, errPermanent) {
		telemetry.Metrics.JobsDeadLettered.Inc()
		telemetry.Errorf("queue: job dead order=%s after %d attempts: %v", job.OrderID, job.Attempt, err)
		if data, merr := json.Marshal(job); merr == nil {
			q.rdb.LPush(cleanupCtx, q.key("dead"), data)
		}
		return
	}

	delay := q.Backoff(job.Attempt)
	telemetry.Metrics.JobsRetried.Inc()
	telemetry.Warnf("queue: job failed order=%s attempt=%d, retrying in %s: %v", job.OrderID, job.Attempt, delay, err)

	data, merr := json.Marshal(job)
	if merr != nil {
		telemetry.Errorf("queue: marshal retry job: %v", merr)
		return
	}
	q.rdb.ZAdd(cleanupCtx, q.key("delayed"), redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: string(data),
	})
}

// promoteLoop moves due delayed jobs back onto the pending list.
func (q *Queue) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := fmt.Sprintf("%d", time.Now().UnixMilli())
		due, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: 100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				telemetry.Errorf("queue: promote scan failed: %v", err)
			}
			continue
		}

		for _, member := range due {
			removed, err := q.rdb.ZRem(ctx, q.key("delayed"), member).Result()
			if err != nil || removed == 0 {
				continue
			}
			if err := q.rdb.LPush(ctx, q.key("pending"), member).Err(); err != nil {
				telemetry.Errorf("queue: promote push failed: %v", err)
			}
		}
	}
}
