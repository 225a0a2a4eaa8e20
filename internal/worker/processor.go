// Package worker drives the order state machine. One Process call owns one
// order's job from claim to completion or failure; the queue guarantees no
// second worker touches the same order concurrently.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ItshMoh/sol-sniper-engine/internal/broadcast"
	"github.com/ItshMoh/sol-sniper-engine/internal/order"
	"github.com/ItshMoh/sol-sniper-engine/internal/queue"
	"github.com/ItshMoh/sol-sniper-engine/internal/router"
	"github.com/ItshMoh/sol-sniper-engine/internal/store"
	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
	"github.com/ItshMoh/sol-sniper-engine/internal/venue"
)

// ErrPoolNotFound is the retryable monitoring outcome: no venue has a pool
// yet. The order stays at monitoring and the queue's backoff decides when
// monitoring resumes.
var ErrPoolNotFound = errors.New("pool not found on any DEX")

type Config struct {
	InputMint string
	Cluster   string // "mainnet" or "devnet", for explorer links

	// MonitorTimeout fails orders whose pool never appeared within the
	// window. Zero monitors indefinitely via job redelivery.
	MonitorTimeout time.Duration

	// MaxRetries mirrors the queue's policy so the final monitoring attempt
	// can mark the order failed instead of leaving it dangling.
	MaxRetries int
}

type Processor struct {
	store  store.Store
	hub    *broadcast.Hub
	router *router.Router
	venues map[string]venue.Adapter
	cfg    Config
}

func New(st store.Store, hub *broadcast.Hub, rt *router.Router, cfg Config, adapters ...venue.Adapter) *Processor {
	venues := make(map[string]venue.Adapter, len(adapters))
	for _, a := range adapters {
		venues[a.Name()] = a
	}
	return &Processor{
		store:  st,
		hub:    hub,
		router: rt,
		venues: venues,
		cfg:    cfg,
	}
}

// Process is the queue handler: it walks the order through
// pending → monitoring → triggered → routing → building → submitted →
// confirmed, persisting each transition before broadcasting it. Errors are
// recorded against the order and returned so the queue's retry policy
// governs redelivery.
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	telemetry.Infof("worker: processing order %s (attempt %d)", job.OrderID, job.Attempt)
	start := time.Now()

	if err := p.run(ctx, job); err != nil {
		return err
	}

	telemetry.Metrics.OrderE2ELatency.Record(time.Since(start))
	return nil
}

func (p *Processor) run(ctx context.Context, job queue.Job) error {
	id := job.OrderID
	params := job.Params

	cur, err := p.store.GetOrder(ctx, id)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	from := cur.Status

	// First delivery announces the queued order. Redeliveries resume from
	// the persisted status instead of replaying earlier transitions; the
	// one restart is a failed order, which re-enters through pending.
	if from != order.StatusFailed && job.Attempt <= 1 {
		p.publish(id, order.StatusPending, "Order received and queued", nil)
	}
	if err := p.advance(ctx, id, &from, order.StatusPending, "Order received and queued", store.Fields{}, nil); err != nil {
		return err
	}

	if err := p.advance(ctx, id, &from, order.StatusMonitoring,
		fmt.Sprintf("Monitoring for pool creation: %s", shortMint(params.TokenAddress)), store.Fields{}, nil); err != nil {
		return err
	}

	pools, err := p.router.DiscoverPools(ctx, params.TokenAddress)
	if err != nil {
		return p.fail(ctx, id, err)
	}
	if !pools.Found {
		return p.poolMissing(ctx, job)
	}

	if err := p.advance(ctx, id, &from, order.StatusTriggered, "Pool detected! Starting execution...", store.Fields{}, nil); err != nil {
		return err
	}

	if err := p.advance(ctx, id, &from, order.StatusRouting, "Comparing Raydium and Meteora quotes...", store.Fields{}, nil); err != nil {
		return err
	}

	route, err := p.router.SelectRoute(ctx, params, pools)
	if err != nil {
		return p.fail(ctx, id, err)
	}

	// A second routing event carries the decision for auditability.
	p.publish(id, order.StatusRouting, fmt.Sprintf("Best route selected: %s", route.Venue), func(evt *order.StatusEvent) {
		detail := &order.RoutingDetail{
			Selected: route.Venue,
			Reason:   route.Reason,
		}
		if q, ok := route.Quotes["raydium"]; ok {
			detail.RaydiumOutput = q.OutputAmount.String()
		}
		if q, ok := route.Quotes["meteora"]; ok {
			detail.MeteoraOutput = q.OutputAmount.String()
		}
		evt.Routing = detail
		evt.SelectedDex = route.Venue
	})

	if err := p.advance(ctx, id, &from, order.StatusBuilding,
		fmt.Sprintf("Building transaction on %s...", route.Venue),
		store.Fields{SelectedDex: route.Venue},
		func(evt *order.StatusEvent) { evt.SelectedDex = route.Venue }); err != nil {
		return err
	}

	if err := p.advance(ctx, id, &from, order.StatusSubmitted, "Transaction submitted to blockchain...", store.Fields{}, nil); err != nil {
		return err
	}

	adapter, ok := p.venues[route.Venue]
	if !ok {
		return p.fail(ctx, id, fmt.Errorf("no adapter for venue %q", route.Venue))
	}

	result, err := adapter.ExecuteSwap(ctx, route.PoolID, p.cfg.InputMint, route.ChosenQuote.InputAmount, params.SlippageBps)
	if err != nil {
		return p.fail(ctx, id, err)
	}

	explorer := p.explorerURL(result.TxID)
	if err := p.advance(ctx, id, &from, order.StatusConfirmed, "Transaction confirmed!",
		store.Fields{TxHash: result.TxID},
		func(evt *order.StatusEvent) {
			evt.TxHash = result.TxID
			evt.ExplorerURL = explorer
		}); err != nil {
		return err
	}

	telemetry.Metrics.OrdersConfirmed.Inc()
	telemetry.Infof("worker: order %s confirmed tx=%s", id, result.TxID)
	return nil
}

// poolMissing handles the monitoring hold: the transition to triggered is
// withheld and the job is redelivered under the queue's backoff. Only the
// final attempt, or an expired monitoring window, marks the order failed.
func (p *Processor) poolMissing(ctx context.Context, job queue.Job) error {
	if p.cfg.MonitorTimeout > 0 && !job.EnqueuedAt.IsZero() && time.Since(job.EnqueuedAt) > p.cfg.MonitorTimeout {
		err := fmt.Errorf("monitoring window expired after %s: %w", p.cfg.MonitorTimeout, ErrPoolNotFound)
		p.recordFailure(ctx, job.OrderID, err)
		return queue.Permanent(err)
	}

	if p.cfg.MaxRetries > 0 && job.Attempt >= p.cfg.MaxRetries {
		p.recordFailure(ctx, job.OrderID, ErrPoolNotFound)
		return ErrPoolNotFound
	}

	telemetry.Infof("worker: order %s still monitoring, awaiting redelivery", job.OrderID)
	return ErrPoolNotFound
}

// fail records the error against the order and re-raises it so the queue's
// retry policy decides whether the pipeline restarts from pending.
func (p *Processor) fail(ctx context.Context, id string, cause error) error {
	p.recordFailure(ctx, id, cause)
	return cause
}

func (p *Processor) recordFailure(ctx context.Context, id string, cause error) {
	telemetry.Metrics.OrdersFailed.Inc()
	telemetry.Errorf("worker: order %s failed: %v", id, cause)

	if err := p.store.UpdateStatus(ctx, id, order.StatusFailed, store.Fields{ErrorMessage: cause.Error()}); err != nil {
		telemetry.Errorf("worker: persisting failure for %s: %v", id, err)
		return
	}
	p.publish(id, order.StatusFailed, cause.Error(), func(evt *order.StatusEvent) {
		evt.Error = cause.Error()
	})
}

// advance moves the order forward to the given status, skipping statuses it
// has already passed: a redelivered job resumes mid-pipeline, never moves the
// order backward. The transition rules are enforced before persisting.
func (p *Processor) advance(ctx context.Context, id string, from *order.Status, to order.Status, message string, f store.Fields, extra func(*order.StatusEvent)) error {
	if to.Rank() <= (*from).Rank() {
		return nil
	}
	if !order.CanTransition(*from, to) {
		return fmt.Errorf("illegal transition %s -> %s for order %s", *from, to, id)
	}
	if err := p.transition(ctx, id, to, message, f, extra); err != nil {
		return err
	}
	*from = to
	return nil
}

// transition persists the new status, then broadcasts it. Persistence comes
// first so a late subscriber reading the store never sees staler data than
// the last event it could have received.
func (p *Processor) transition(ctx context.Context, id string, status order.Status, message string, f store.Fields, extra func(*order.StatusEvent)) error {
	if err := p.store.UpdateStatus(ctx, id, status, f); err != nil {
		return fmt.Errorf("persist %s: %w", status, err)
	}
	p.publish(id, status, message, extra)
	return nil
}

func (p *Processor) publish(id string, status order.Status, message string, extra func(*order.StatusEvent)) {
	evt := order.StatusEvent{
		OrderID:   id,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if extra != nil {
		extra(&evt)
	}
	p.hub.Publish(id, evt)
}

func (p *Processor) explorerURL(txID string) string {
	url := "https://explorer.solana.com/tx/" + txID
	if p.cfg.Cluster == "devnet" {
		url += "?cluster=devnet"
	}
	return url
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:8] + "..."
}
