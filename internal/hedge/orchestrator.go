package hedge

import (
	"context"
	"fmt"

	"lp-hedge-bot/internal/config"
	"lp-hedge-bot/internal/exec"
	"lp-hedge-bot/internal/risk"
	"lp-hedge-bot/internal/strategy"

	"go.uber.org/zap"
)

// Inputs is everything one rebalance decision needs, gathered by the cycle.
// FundingAPR is the annualized funding rate; risk thresholds are expressed
// on that scale.
type Inputs struct {
	LPDelta      float64
	PerpPosition float64
	Price        float64
	Margin       float64
	Volatility   float64
	FundingAPR   float64
}

// Outcome pairs the strategy decision with what actually happened to it.
// Throttled means an adjust was wanted but the cooldown window dropped it.
type Outcome struct {
	Decision  strategy.Result
	Submitted bool
	Throttled bool
	Receipt   exec.Receipt
}

// Orchestrator turns strategy decisions into executor calls, subject to
// safe mode and the configured run mode. The decision is always computed
// so viewer deployments and safe-mode cycles still log and persist it.
type Orchestrator struct {
	risk     config.RiskConfig
	safeMode *risk.SafeMode
	executor *exec.Executor
	live     bool
	log      *zap.Logger
}

func New(riskCfg config.RiskConfig, safeMode *risk.SafeMode, executor *exec.Executor, live bool, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		risk:     riskCfg,
		safeMode: safeMode,
		executor: executor,
		live:     live,
		log:      log,
	}
}

// Rebalance computes the cycle's decision and, when it calls for an
// adjustment, hands it to the executor. Safe mode downgrades the action to
// hold while leaving the numeric fields intact for observability.
func (o *Orchestrator) Rebalance(ctx context.Context, in Inputs) (Outcome, error) {
	decision := strategy.Compute(in.LPDelta, in.PerpPosition, in.Price, in.Margin, in.Volatility, in.FundingAPR, o.risk)

	if o.safeMode.Active() {
		if decision.Action == strategy.ActionAdjust {
			o.log.Warn("safe mode active, holding instead of adjusting",
				zap.Strings("reasons", o.safeMode.Reasons()),
				zap.Float64("hedge_size", decision.HedgeSize))
		}
		decision.Action = strategy.ActionHold
		return Outcome{Decision: decision}, nil
	}

	switch decision.Action {
	case strategy.ActionHold:
		return Outcome{Decision: decision}, nil
	case strategy.ActionAdjust:
		if !o.live {
			o.log.Info("viewer mode, skipping order submission",
				zap.Float64("hedge_size", decision.HedgeSize),
				zap.Float64("perp_position", in.PerpPosition))
			return Outcome{Decision: decision}, nil
		}
		receipt, disp, err := o.executor.SetHedge(ctx, decision.HedgeSize, in.PerpPosition, nil)
		if err != nil {
			return Outcome{Decision: decision}, fmt.Errorf("rebalance: %w", err)
		}
		return outcomeFor(decision, disp, receipt), nil
	case strategy.ActionRemove:
		if !o.live {
			return Outcome{Decision: decision}, nil
		}
		receipt, disp, err := o.executor.SetHedge(ctx, 0, in.PerpPosition, nil)
		if err != nil {
			return Outcome{Decision: decision}, fmt.Errorf("remove hedge: %w", err)
		}
		return outcomeFor(decision, disp, receipt), nil
	default:
		return Outcome{Decision: decision}, fmt.Errorf("unknown action %q", decision.Action)
	}
}

func outcomeFor(decision strategy.Result, disp exec.Disposition, receipt exec.Receipt) Outcome {
	return Outcome{
		Decision:  decision,
		Submitted: disp == exec.DispositionSubmitted,
		Throttled: disp == exec.DispositionThrottled,
		Receipt:   receipt,
	}
}
