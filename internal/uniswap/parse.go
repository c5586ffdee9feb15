package uniswap

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// q96 is the fixed-point scale of sqrtPriceX96.
var q96 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 96), 0)

// The subgraph reports every numeric field as a string (and occasionally as
// a bare number). All parsing happens here, once, so the calculator only
// ever sees typed values.

func parsePosition(m map[string]any) Position {
	pos := Position{
		ID:             stringFromMap(m, "id"),
		Liquidity:      floatPtrFromAny(m["liquidity"]),
		TickLower:      tickFromAny(m["tickLower"]),
		TickUpper:      tickFromAny(m["tickUpper"]),
		Deposited0:     floatFromMap(m, "depositedToken0"),
		Deposited1:     floatFromMap(m, "depositedToken1"),
		Withdrawn0:     floatFromMap(m, "withdrawnToken0"),
		Withdrawn1:     floatFromMap(m, "withdrawnToken1"),
		CollectedFees0: floatFromMap(m, "collectedFeesToken0"),
		CollectedFees1: floatFromMap(m, "collectedFeesToken1"),
	}
	if poolRaw, ok := toMap(m["pool"]); ok {
		pos.Pool = parsePool(poolRaw)
	}
	return pos
}

func parsePool(m map[string]any) *Pool {
	if m == nil {
		return nil
	}
	pool := &Pool{
		ID:        stringFromMap(m, "id"),
		SqrtPrice: sqrtPriceFromAny(m["sqrtPrice"], m["sqrtPriceX96"]),
		Tick:      intPtrFromAny(m["tick"]),
	}
	if t, ok := toMap(m["token0"]); ok {
		pool.Token0 = parseToken(t)
	}
	if t, ok := toMap(m["token1"]); ok {
		pool.Token1 = parseToken(t)
	}
	return pool
}

func parseToken(m map[string]any) Token {
	decimals := 0
	if p := intPtrFromAny(m["decimals"]); p != nil {
		decimals = *p
	}
	return Token{
		Symbol:   stringFromMap(m, "symbol"),
		Decimals: decimals,
	}
}

// sqrtPriceFromAny normalizes a raw sqrtPriceX96 string by 2^96. The raw
// value does not fit a float64 without precision loss, so it goes through
// decimal arithmetic first.
func sqrtPriceFromAny(candidates ...any) *float64 {
	for _, v := range candidates {
		d, ok := decimalFromAny(v)
		if !ok {
			continue
		}
		normalized := d.Div(q96).InexactFloat64()
		return &normalized
	}
	return nil
}

// tickFromAny accepts either a nested object ({tickIdx} or {tick}) or a bare
// scalar, both of which appear across subgraph deployments.
func tickFromAny(v any) *int {
	if m, ok := toMap(v); ok {
		if p := intPtrFromAny(m["tickIdx"]); p != nil {
			return p
		}
		return intPtrFromAny(m["tick"])
	}
	return intPtrFromAny(v)
}

func decimalFromAny(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	default:
		return decimal.Decimal{}, false
	}
}

func floatFromAny(v any) (float64, bool) {
	d, ok := decimalFromAny(v)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func floatPtrFromAny(v any) *float64 {
	if f, ok := floatFromAny(v); ok {
		return &f
	}
	return nil
}

func floatFromMap(m map[string]any, key string) float64 {
	f, _ := floatFromAny(m[key])
	return f
}

func intPtrFromAny(v any) *int {
	if f, ok := floatFromAny(v); ok {
		i := int(f)
		return &i
	}
	return nil
}

func stringFromMap(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}
