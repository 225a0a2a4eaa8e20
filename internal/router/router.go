// Package router decides where an order trades. Discovery finds pools for a
// token across venues (local registry first, then on-chain checks), and
// selection compares quotes to pick the route with the best output.
package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ItshMoh/sol-sniper-engine/internal/config"
	"github.com/ItshMoh/sol-sniper-engine/internal/order"
	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
	"github.com/ItshMoh/sol-sniper-engine/internal/venue"
)

// ErrNoRouteAvailable is returned when no venue produced a usable quote.
var ErrNoRouteAvailable = errors.New("no route available: no venue produced a quote")

// Pools is the discovery result: venue name -> pool id for every venue that
// resolved one.
type Pools struct {
	ByVenue map[string]string
	Found   bool
}

// Route is the selection decision, consumed immediately by execution.
type Route struct {
	Venue       string
	PoolID      string
	ChosenQuote venue.Quote
	Reason      string

	// All quotes considered, keyed by venue, for the broadcast payload.
	Quotes map[string]venue.Quote
}

// Router queries venue adapters in a fixed priority order. That order is
// also the deterministic tie-break: venue fees are denominated in different
// tokens and cannot be compared, so equal outputs resolve to the
// earlier-registered venue.
type Router struct {
	adapters  []venue.Adapter
	registry  config.KnownPools
	inputMint string
}

func New(inputMint string, registry config.KnownPools, adapters ...venue.Adapter) *Router {
	return &Router{
		adapters:  adapters,
		registry:  registry,
		inputMint: inputMint,
	}
}

// DiscoverPools checks the local registry first, then falls back to each
// venue's on-chain existence check for venues the registry did not cover.
// Registry entries take precedence; a venue error only drops that venue.
func (r *Router) DiscoverPools(ctx context.Context, tokenMint string) (Pools, error) {
	pools := Pools{ByVenue: make(map[string]string)}

	for _, a := range r.adapters {
		if poolID, ok := r.registry.Lookup(a.Name(), tokenMint); ok {
			telemetry.Infof("router: %s pool from local registry: %s", a.Name(), poolID)
			pools.ByVenue[a.Name()] = poolID
			continue
		}

		info, err := a.PoolExists(ctx, tokenMint)
		if err != nil {
			telemetry.Warnf("router: %s pool check failed: %v", a.Name(), err)
			continue
		}
		if info.Exists {
			telemetry.Infof("router: %s pool found on-chain: %s", a.Name(), info.PoolID)
			pools.ByVenue[a.Name()] = info.PoolID
		}
	}

	pools.Found = len(pools.ByVenue) > 0
	if !pools.Found {
		telemetry.Debugf("router: no pools found for token %s", tokenMint)
	}
	return pools, nil
}

// SelectRoute quotes every venue with a pool and picks the best route.
// A single venue's quote failure excludes that venue; only when every venue
// fails does the order fail with ErrNoRouteAvailable.
func (r *Router) SelectRoute(ctx context.Context, ord order.Params, pools Pools) (Route, error) {
	amount := big.NewInt(ord.AmountIn)
	quotes := make(map[string]venue.Quote)

	for _, a := range r.adapters {
		poolID, ok := pools.ByVenue[a.Name()]
		if !ok {
			telemetry.Infof("router: %s: no pool available", a.Name())
			continue
		}

		q, err := a.Quote(ctx, poolID, r.inputMint, amount, ord.SlippageBps)
		if err != nil {
			telemetry.Warnf("router: %s quote failed: %v", a.Name(), err)
			continue
		}

		telemetry.Infof("router: %s quoted out=%s fee=%s(%s) impact=%.2f%%",
			a.Name(), q.OutputAmount, q.Fee, q.FeeDenomination, q.PriceImpact)
		quotes[a.Name()] = q
	}

	if len(quotes) == 0 {
		return Route{}, ErrNoRouteAvailable
	}

	best, reason := pick(r.adapters, quotes)

	telemetry.Infof("router: selected %s (%s)", best.Venue, reason)

	return Route{
		Venue:       best.Venue,
		PoolID:      best.PoolID,
		ChosenQuote: best,
		Reason:      reason,
		Quotes:      quotes,
	}, nil
}

// pick chooses the quote with the strictly greater output. Ties and single
// candidates resolve by adapter priority order.
func pick(adapters []venue.Adapter, quotes map[string]venue.Quote) (venue.Quote, string) {
	if len(quotes) == 1 {
		for _, q := range quotes {
			return q, "only venue available"
		}
	}

	var best venue.Quote
	haveBest := false
	for _, a := range adapters {
		q, ok := quotes[a.Name()]
		if !ok {
			continue
		}
		if !haveBest || q.OutputAmount.Cmp(best.OutputAmount) > 0 {
			best = q
			haveBest = true
		}
	}

	outputs := ""
	for _, a := range adapters {
		if q, ok := quotes[a.Name()]; ok {
			if outputs != "" {
				outputs += " vs "
			}
			outputs += fmt.Sprintf("%s %s", a.Name(), q.OutputAmount)
		}
	}
	return best, "better output: " + outputs
}
