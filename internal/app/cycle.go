package app

import (
	"context"
	"fmt"
	"math"

	"lp-hedge-bot/internal/exec"
	"lp-hedge-bot/internal/hedge"
	"lp-hedge-bot/internal/risk"
	"lp-hedge-bot/internal/state"
	"lp-hedge-bot/internal/strategy"
	"lp-hedge-bot/internal/timescale"
	"lp-hedge-bot/internal/uniswap"

	"go.uber.org/zap"
)

const (
	reasonSubgraph = "subgraph"

	keySafeModeEnter = "safe_mode_enter"
	keySafeModeExit  = "safe_mode_exit"
	keyAccountError  = "account_error"
	keyPriceError    = "price_error"
	keyKillSwitch    = "kill_switch"
	keyFundingHigh   = "funding_high"
	keyCycleError    = "cycle_error"
)

// cycle runs one observe-decide-act pass. A slow pass is skipped over by
// the next tick rather than stacked behind it.
func (a *App) cycle(ctx context.Context) {
	if !a.cycleRunning.CompareAndSwap(false, true) {
		a.log.Debug("previous cycle still running, skipping tick")
		return
	}
	defer a.cycleRunning.Store(false)
	a.metrics.CyclesTotal.Inc()

	lpDelta, err := a.observeExposure(ctx)
	if err != nil {
		a.metrics.DataUnavailable.Inc()
		if a.safeMode.Enter(reasonSubgraph) {
			a.metrics.SafeModeEntered.Inc()
			a.notifier.Reset(keySafeModeExit)
			a.notifier.Once(ctx, keySafeModeEnter,
				fmt.Sprintf("Safe mode: LP position data unavailable (%v). Hedging paused.", err))
		}
		a.log.Warn("exposure unavailable", zap.Error(err))
		return
	}
	if a.safeMode.Exit(reasonSubgraph) {
		a.metrics.SafeModeExited.Inc()
		a.notifier.Reset(keySafeModeEnter)
		a.notifier.Once(ctx, keySafeModeExit, "Recovered: LP position data available again. Hedging resumed.")
	}

	snap, err := a.account.Fetch(ctx)
	if err != nil {
		a.metrics.CycleFailures.Inc()
		a.notifier.Alert(ctx, keyAccountError, fmt.Sprintf("Perp account fetch failed: %v", err))
		a.log.Warn("account fetch failed", zap.Error(err))
		return
	}

	if err := a.prices.RefreshContexts(ctx); err != nil {
		a.log.Warn("context refresh failed", zap.Error(err))
	}
	price, err := a.prices.Mid(ctx, a.cfg.Strategy.PerpAsset)
	if err != nil {
		a.metrics.CycleFailures.Inc()
		a.notifier.Alert(ctx, keyPriceError, fmt.Sprintf("Perp price fetch failed: %v", err))
		a.log.Warn("price fetch failed", zap.Error(err))
		return
	}
	a.tracker.Record(price)
	volatility := a.tracker.Current()
	// risk thresholds are annualized; the hourly rate only feeds the
	// per-cycle funding accrual
	fundingRate, _ := a.prices.FundingRate(a.cfg.Strategy.PerpAsset)
	fundingAPR, _ := a.prices.FundingAPR(a.cfg.Strategy.PerpAsset)

	outcome, err := a.orchestrator.Rebalance(ctx, hedge.Inputs{
		LPDelta:      lpDelta,
		PerpPosition: snap.Position,
		Price:        price,
		Margin:       snap.MarginUSD,
		Volatility:   volatility,
		FundingAPR:   fundingAPR,
	})
	if err != nil {
		a.metrics.CycleFailures.Inc()
		a.notifier.Alert(ctx, keyCycleError, fmt.Sprintf("Hedge rebalance failed: %v", err))
		a.log.Warn("rebalance failed", zap.Error(err))
	}
	decision := outcome.Decision

	if outcome.Submitted {
		a.metrics.OrdersSubmitted.Inc()
		a.recordExecution(ctx, decision, outcome.Receipt)
	} else if outcome.Throttled {
		a.metrics.OrdersThrottled.Inc()
	}

	a.evaluateKillSwitch(ctx, lpDelta, snap.Position, price, snap.MarginRatio, snap.HasMarginRatio)
	a.checkFunding(ctx, fundingAPR)
	a.persistCycle(ctx, lpDelta, snap.Position, price, snap.MarginRatio, snap.HasMarginRatio, volatility, fundingRate, decision)

	a.log.Info("cycle complete",
		zap.Float64("lp_delta", lpDelta),
		zap.Float64("perp_position", snap.Position),
		zap.Float64("price", price),
		zap.Float64("volatility", volatility),
		zap.Float64("funding_rate", fundingRate),
		zap.Float64("funding_apr", fundingAPR),
		zap.String("action", string(decision.Action)),
		zap.Float64("hedge_size", decision.HedgeSize),
		zap.Float64("target_leverage", decision.TargetLeverage),
		zap.Bool("submitted", outcome.Submitted),
		zap.Bool("safe_mode", a.safeMode.Active()))
}

// observeExposure fetches LP positions and reduces them to a signed
// base-asset delta.
func (a *App) observeExposure(ctx context.Context) (float64, error) {
	positions, err := a.positions.Positions(ctx, a.owner)
	if err != nil {
		return 0, err
	}
	var pool *uniswap.Pool
	if a.cfg.Strategy.PoolID != "" {
		pool, err = a.positions.PoolState(ctx, a.cfg.Strategy.PoolID)
		if err != nil {
			return 0, err
		}
	}
	return uniswap.ComputeExposure(positions, pool, a.cfg.Strategy.BaseToken, a.cfg.Strategy.QuoteToken)
}

func (a *App) evaluateKillSwitch(ctx context.Context, lpDelta, perpPosition, price, marginRatio float64, hasMarginRatio bool) {
	netDelta := lpDelta + perpPosition
	notionalLP := math.Abs(lpDelta) * price
	ratio := marginRatio
	if !hasMarginRatio {
		// no margin in use, the margin leg of the check cannot trip
		ratio = math.Inf(1)
	}
	if risk.KillSwitch(netDelta, notionalLP, ratio, a.cfg.Risk) {
		a.metrics.KillSwitchTriggered.Inc()
		a.notifier.Alert(ctx, keyKillSwitch,
			fmt.Sprintf("KILL SWITCH: net delta %.6f against LP notional %.2f, margin ratio %.3f. Manual intervention required.",
				netDelta, notionalLP, marginRatio))
		a.log.Error("kill switch tripped",
			zap.Float64("net_delta", netDelta),
			zap.Float64("notional_lp", notionalLP),
			zap.Float64("margin_ratio", marginRatio))
	}
}

func (a *App) checkFunding(ctx context.Context, fundingAPR float64) {
	if fundingAPR > a.cfg.Risk.FundingAlertPct {
		a.notifier.Alert(ctx, keyFundingHigh,
			fmt.Sprintf("Funding APR %.4f above alert threshold %.4f.", fundingAPR, a.cfg.Risk.FundingAlertPct))
	}
}

func (a *App) recordExecution(ctx context.Context, decision strategy.Result, receipt exec.Receipt) {
	now := a.now().UTC()
	side := "buy"
	if decision.HedgeSize < 0 {
		side = "sell"
	}
	size := math.Abs(decision.HedgeSize)
	if err := a.store.InsertExecution(ctx, state.Execution{
		Time:    now,
		Side:    side,
		Size:    size,
		Status:  receipt.Status,
		OrderID: receipt.OrderID,
	}); err != nil {
		a.log.Warn("execution persist failed", zap.Error(err))
	}
	a.timescale.EnqueueExecution(timescale.ExecutionEvent{
		Time:    now,
		Asset:   a.cfg.Strategy.PerpAsset,
		Side:    side,
		Size:    size,
		Status:  receipt.Status,
		OrderID: receipt.OrderID,
	})
}

func (a *App) persistCycle(ctx context.Context, lpDelta, perpPosition, price, marginRatio float64, hasMarginRatio bool, volatility, fundingRate float64, decision strategy.Result) {
	now := a.now().UTC()
	if err := a.store.InsertSnapshot(ctx, state.Snapshot{
		Time:         now,
		LPDelta:      lpDelta,
		PerpPosition: perpPosition,
		Price:        price,
		MarginRatio:  marginRatio,
		Volatility:   volatility,
		FundingRate:  fundingRate,
		Action:       string(decision.Action),
	}); err != nil {
		a.log.Warn("snapshot persist failed", zap.Error(err))
	}

	// hourly funding accrues against the open hedge notional for the slice
	// of the hour this cycle covers
	cost := fundingRate * math.Abs(perpPosition) * price * a.cfg.Strategy.CycleInterval.Hours()
	if cost != 0 {
		day := now.Format("2006-01-02")
		if err := a.store.AccumulateFundingCost(ctx, day, cost); err != nil {
			a.log.Warn("funding accrual failed", zap.Error(err))
		}
	}

	a.timescale.EnqueueCycle(timescale.CycleSnapshot{
		Time:           now,
		Pair:           a.cfg.Strategy.Pair,
		PerpAsset:      a.cfg.Strategy.PerpAsset,
		LPDelta:        lpDelta,
		PerpPosition:   perpPosition,
		Price:          price,
		NotionalUSD:    math.Abs(lpDelta) * price,
		Volatility:     volatility,
		FundingRate:    fundingRate,
		TargetLeverage: decision.TargetLeverage,
		MarginRatio:    marginRatio,
		HasMarginRatio: hasMarginRatio,
		Action:         string(decision.Action),
		SafeMode:       a.safeMode.Active(),
	})
}
