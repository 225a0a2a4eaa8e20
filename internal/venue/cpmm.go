package venue

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Constant-product swap math shared by adapters that quote from raw pool
// reserves. Fee rates are expressed in parts per million of the input
// amount, matching on-chain CPMM config encoding.

const feeRateDenominator = 1_000_000

var ErrEmptyReserves = errors.New("pool has empty reserves")

// SwapBaseInput computes the output of swapping exactly amountIn against a
// constant-product pool with the given reserves. The trade fee is taken from
// the input side before the curve is applied.
func SwapBaseInput(amountIn, reserveIn, reserveOut *big.Int, tradeFeeRate int64) (out, fee *big.Int, err error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, nil, ErrEmptyReserves
	}
	if amountIn.Sign() <= 0 {
		return nil, nil, errors.New("input amount must be positive")
	}

	fee = new(big.Int).Mul(amountIn, big.NewInt(tradeFeeRate))
	fee.Div(fee, big.NewInt(feeRateDenominator))

	netIn := new(big.Int).Sub(amountIn, fee)

	// out = reserveOut * netIn / (reserveIn + netIn)
	num := new(big.Int).Mul(reserveOut, netIn)
	den := new(big.Int).Add(reserveIn, netIn)
	out = num.Div(num, den)

	return out, fee, nil
}

// MinOutput applies the slippage tolerance in basis points to an expected
// output amount, rounding down.
func MinOutput(out *big.Int, slippageBps int) *big.Int {
	min := new(big.Int).Mul(out, big.NewInt(int64(10000-slippageBps)))
	return min.Div(min, big.NewInt(10000))
}

// PriceImpact returns |executionPrice - spotPrice| / spotPrice * 100, using
// the pre-swap reserves as the spot-price reference.
func PriceImpact(amountIn, amountOut, reserveIn, reserveOut *big.Int) float64 {
	if reserveIn.Sign() <= 0 || amountIn.Sign() <= 0 {
		return 0
	}
	spot := decimal.NewFromBigInt(reserveOut, 0).Div(decimal.NewFromBigInt(reserveIn, 0))
	if spot.IsZero() {
		return 0
	}
	exec := decimal.NewFromBigInt(amountOut, 0).Div(decimal.NewFromBigInt(amountIn, 0))
	impact := exec.Sub(spot).Div(spot).Abs().Mul(decimal.NewFromInt(100))
	f, _ := impact.Float64()
	return f
}
