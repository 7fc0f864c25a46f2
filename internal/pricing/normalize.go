// Package pricing converts per-token fee growth into one common-denominator amount.
package pricing

import (
	"context"
	"errors"
	"math/big"

	"telxScope/internal/fixedpoint"
)

var ErrPriceUnavailable = errors.New("price unavailable")

// Prices are common-denominator units per 1 token, scaled by 1e18.
type Prices struct {
	Token0 *big.Int
	Token1 *big.Int
}

// Usable reports whether both prices are present and non-negative.
func (p *Prices) Usable() bool {
	return p != nil && p.Token0 != nil && p.Token1 != nil && p.Token0.Sign() >= 0 && p.Token1.Sign() >= 0
}

// Source fetches prices at a block height.
type Source interface {
	Prices(ctx context.Context, blockNumber uint64) (Prices, error)
}

// StaticSource serves fixed prices.
type StaticSource struct {
	Value Prices
}

func (s StaticSource) Prices(context.Context, uint64) (Prices, error) {
	if !s.Value.Usable() {
		return Prices{}, ErrPriceUnavailable
	}
	return s.Value, nil
}

// Amount is a normalized fee amount.
type Amount struct {
	Amount0 *big.Int
	Amount1 *big.Int
	Common  *big.Int
	// Approximate is set when prices were unavailable and token units were summed.
	Approximate bool
}

// Normalize turns fee growth deltas into token amounts and then into one value.
// Without usable prices the token amounts are summed and the result is approximate.
func Normalize(feeGrowth0, feeGrowth1, liquidity *big.Int, prices *Prices) Amount {
	amount := Amount{
		Amount0: new(big.Int),
		Amount1: new(big.Int),
	}
	if liquidity != nil && liquidity.Sign() != 0 {
		amount.Amount0 = fixedpoint.MulShift128(feeGrowth0, liquidity)
		amount.Amount1 = fixedpoint.MulShift128(feeGrowth1, liquidity)
	}

	if !prices.Usable() {
		amount.Common = new(big.Int).Add(amount.Amount0, amount.Amount1)
		amount.Approximate = true
		return amount
	}

	common := new(big.Int).Mul(amount.Amount0, prices.Token0)
	common.Add(common, new(big.Int).Mul(amount.Amount1, prices.Token1))
	amount.Common = common.Quo(common, fixedpoint.WAD)
	return amount
}
