package uniswap

import (
	"errors"
	"fmt"
	"math"
)

// ErrDataUnavailable marks an exposure that could not be computed from the
// data at hand. ErrTokenOrdering and ErrDegenerateAmounts wrap it, so callers
// only ever need errors.Is(err, ErrDataUnavailable) to decide on safe mode.
var (
	ErrDataUnavailable   = errors.New("lp exposure unavailable")
	ErrTokenOrdering     = fmt.Errorf("unsupported pool token ordering: %w", ErrDataUnavailable)
	ErrDegenerateAmounts = fmt.Errorf("position amounts indistinguishable from missing data: %w", ErrDataUnavailable)
)

// ComputeExposure converts LP positions plus pool state into a signed
// base-token exposure (positive = long base).
//
// A nil positions slice means the fetch itself failed and yields
// ErrDataUnavailable; an empty slice means no position and yields exactly 0.
// A single position failing both the closed-form and the fallback path fails
// the whole aggregate: a partial sum would understate exposure.
func ComputeExposure(positions []Position, pool *Pool, baseSymbol, quoteSymbol string) (float64, error) {
	if positions == nil {
		return 0, fmt.Errorf("positions fetch failed: %w", ErrDataUnavailable)
	}
	if len(positions) == 0 {
		return 0, nil
	}
	if pool == nil {
		pool = positions[0].Pool
	}
	if pool == nil {
		return 0, fmt.Errorf("pool state missing: %w", ErrDataUnavailable)
	}
	if pool.SqrtPrice == nil || *pool.SqrtPrice <= 0 {
		return 0, fmt.Errorf("pool sqrt price missing: %w", ErrDataUnavailable)
	}
	price := *pool.SqrtPrice * *pool.SqrtPrice
	if pool.Token0.Symbol == "" || pool.Token1.Symbol == "" {
		return 0, fmt.Errorf("pool token symbols missing: %w", ErrDataUnavailable)
	}

	var total0, total1 float64
	for _, pos := range positions {
		amt0, amt1, err := positionAmounts(pos, pool)
		if err != nil {
			return 0, fmt.Errorf("position %s: %w", pos.ID, err)
		}
		total0 += amt0
		total1 += amt1
	}

	switch {
	case pool.Token0.Symbol == baseSymbol && pool.Token1.Symbol == quoteSymbol:
		return total0 - total1/price, nil
	case pool.Token1.Symbol == baseSymbol && pool.Token0.Symbol == quoteSymbol:
		return total1 - total0/price, nil
	default:
		return 0, fmt.Errorf("pool pair %s/%s does not match %s/%s: %w",
			pool.Token0.Symbol, pool.Token1.Symbol, baseSymbol, quoteSymbol, ErrTokenOrdering)
	}
}

// positionAmounts returns the token0/token1 amounts redeemable from one
// position. Preferred path is the closed-form liquidity conversion; the
// fallback nets deposits against withdrawals and collected fees. Both zero
// in the fallback is ambiguous with missing data and therefore an error.
func positionAmounts(pos Position, fallback *Pool) (float64, float64, error) {
	pool := pos.Pool
	if pool == nil {
		pool = fallback
	}
	if pool != nil && pool.SqrtPrice != nil && *pool.SqrtPrice > 0 &&
		pos.Liquidity != nil && pos.TickLower != nil && pos.TickUpper != nil {
		lower := tickToSqrtPrice(*pos.TickLower)
		upper := tickToSqrtPrice(*pos.TickUpper)
		amt0, amt1 := liquidityToAmounts(*pos.Liquidity, *pool.SqrtPrice, lower, upper)
		return amt0, amt1, nil
	}
	amt0 := pos.Deposited0 - pos.Withdrawn0 - pos.CollectedFees0
	amt1 := pos.Deposited1 - pos.Withdrawn1 - pos.CollectedFees1
	if amt0 == 0 && amt1 == 0 {
		return 0, 0, ErrDegenerateAmounts
	}
	return amt0, amt1, nil
}

// liquidityToAmounts is the Uniswap-v3 closed form across the three price
// regimes relative to the position bounds.
func liquidityToAmounts(liquidity, sqrtP, sqrtLower, sqrtUpper float64) (float64, float64) {
	switch {
	case sqrtP <= sqrtLower:
		return liquidity * (sqrtUpper - sqrtLower) / (sqrtLower * sqrtUpper), 0
	case sqrtP < sqrtUpper:
		amt0 := liquidity * (sqrtUpper - sqrtP) / (sqrtP * sqrtUpper)
		amt1 := liquidity * (sqrtP - sqrtLower)
		return amt0, amt1
	default:
		return 0, liquidity * (sqrtUpper - sqrtLower)
	}
}

func tickToSqrtPrice(tick int) float64 {
	return math.Pow(1.0001, float64(tick)/2)
}
