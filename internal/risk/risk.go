package risk

import (
	"math"

	"lp-hedge-bot/internal/config"
)

const (
	minLeverage = 1.5
	maxLeverage = 3.0
	// fundingCapLeverage is the hard secondary cap applied when the
	// annualized funding rate breaches the alert threshold. It only ever
	// lowers the result.
	fundingCapLeverage = 2.0
	epsilon            = 1e-8
	killDeltaMultiple  = 3.0
)

// TargetLeverage computes the hedge leverage for a given exposure. The
// volatility term grows the margin buffer, shrinking leverage; an
// annualized funding rate above the alert threshold caps it independently.
// Margin is part of the contract for callers that size against account
// equity but does not enter the current formula.
func TargetLeverage(exposure, margin, price, volatility, fundingAPR float64, cfg config.RiskConfig) float64 {
	_ = margin
	abs := math.Abs(exposure)
	mreq := abs / cfg.LeverageTarget
	volTerm := 0.0
	if price > 0 {
		volTerm = volatility / price
	}
	buffer := mreq * (1 + cfg.MarginBufferPct + volTerm)
	lev := abs / math.Max(mreq+buffer, epsilon)
	lev = math.Max(minLeverage, math.Min(maxLeverage, lev))
	if fundingAPR > cfg.FundingAlertPct {
		lev = math.Min(lev, fundingCapLeverage)
	}
	return lev
}

// KillSwitch reports whether combined exposure or margin headroom has left
// the acceptable band. It only flags; unwinding is the caller's business.
func KillSwitch(delta, notionalLP, marginRatio float64, cfg config.RiskConfig) bool {
	if math.Abs(delta) > killDeltaMultiple*cfg.DeltaTolerancePct*notionalLP {
		return true
	}
	if marginRatio < 1+cfg.MarginBufferPct {
		return true
	}
	return false
}
