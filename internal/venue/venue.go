// Package venue defines the capability surface the engine consumes from a
// DEX: pool discovery, quoting, and swap execution. The blockchain math and
// transaction plumbing live behind the per-venue adapters; the router and
// worker only ever see this interface.
package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// ErrUnavailable marks a venue-level failure: the venue could not answer for
// this order. The router absorbs these by dropping the venue from the
// decision; they never abort the pipeline on their own.
var ErrUnavailable = errors.New("venue unavailable")

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %v", name, ErrUnavailable, err)
}

// FeeDenomination tags which token a quote's fee is charged in. Raydium
// charges the input token, Meteora the output token, so raw fee values are
// not comparable across venues.
type FeeDenomination string

const (
	FeeInInputToken  FeeDenomination = "input"
	FeeInOutputToken FeeDenomination = "output"
)

// PoolInfo is the result of a pool existence check.
type PoolInfo struct {
	PoolID     string
	TokenAMint string
	TokenBMint string
	Exists     bool
}

// Quote is a venue's estimate for one (pool, input amount, slippage) tuple.
// Amounts are exact integers in the token's base unit. Quotes are ephemeral:
// produced for a single routing decision and never persisted.
type Quote struct {
	Venue           string
	PoolID          string
	InputAmount     *big.Int
	OutputAmount    *big.Int
	Fee             *big.Int
	FeeDenomination FeeDenomination
	PriceImpact     float64 // percent
	MinOutputAmount *big.Int
}

// SwapResult is the outcome of an executed swap.
type SwapResult struct {
	TxID         string
	OutputAmount *big.Int
}

// Adapter is the per-DEX capability set. Implementations own their timeout
// policy; every method honors ctx cancellation.
type Adapter interface {
	Name() string
	PoolExists(ctx context.Context, tokenMint string) (PoolInfo, error)
	Quote(ctx context.Context, poolID, inputMint string, amount *big.Int, slippageBps int) (Quote, error)
	ExecuteSwap(ctx context.Context, poolID, inputMint string, amount *big.Int, slippageBps int) (SwapResult, error)
}
