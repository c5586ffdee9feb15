package strategy

import (
	"math"

	"lp-hedge-bot/internal/config"
	"lp-hedge-bot/internal/risk"
)

// Action is the decision a hedge cycle acts on.
type Action string

const (
	// ActionAdjust means the perp position should be moved to HedgeSize.
	ActionAdjust Action = "adjust"
	// ActionHold means the current perp position is within tolerance.
	ActionHold Action = "hold"
	// ActionRemove is reserved for full hedge teardown. No code path emits
	// it today; callers must still handle it so teardown can be added
	// without touching every switch.
	ActionRemove Action = "remove"
)

// Result carries the full decision for one cycle. HedgeSize is the absolute
// target perp position in base units, not an increment over the current one.
type Result struct {
	Action         Action
	HedgeSize      float64
	TargetLeverage float64
}

// Compute derives the hedge decision from the current LP exposure and perp
// position. The target perp position is the exact negation of the LP delta;
// a rebalance is only worth its fees when the gap exceeds the tolerance
// band scaled by the exposure itself.
func Compute(lpDelta, perpPosition, price, margin, volatility, fundingAPR float64, cfg config.RiskConfig) Result {
	target := -lpDelta
	gap := math.Abs(target - perpPosition)
	band := cfg.DeltaTolerancePct * math.Abs(lpDelta)

	action := ActionHold
	if gap > band {
		action = ActionAdjust
	}

	return Result{
		Action:         action,
		HedgeSize:      target,
		TargetLeverage: risk.TargetLeverage(lpDelta, margin, price, volatility, fundingAPR, cfg),
	}
}
