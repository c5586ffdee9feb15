package exec

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order describes a hedge submission in exchange-neutral terms. Size is
// the absolute target position in base units; Price, when set, caps the
// fill.
type Order struct {
	Symbol string
	Side   Side
	Size   float64
	Price  *float64
}

// Disposition classifies what SetHedge did with a request.
type Disposition int

const (
	DispositionNoChange Disposition = iota
	DispositionThrottled
	DispositionSubmitted
	DispositionFailed
)

const (
	StatusSubmitted = "submitted"
	StatusSimulated = "simulated"
)

// Receipt reports what happened to a submitted order.
type Receipt struct {
	Status  string
	OrderID string
}

// Submitter sends an order to the venue. Viewer deployments plug in a
// simulating implementation that never touches the exchange.
type Submitter interface {
	Submit(ctx context.Context, order Order) (Receipt, error)
}

// Executor rate-limits hedge adjustments. At most one order goes out per
// cooldown window; attempts inside the window are dropped, not queued.
type Executor struct {
	submitter Submitter
	symbol    string
	cooldown  time.Duration
	log       *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	lastAction time.Time
}

func New(submitter Submitter, symbol string, cooldown time.Duration, log *zap.Logger) *Executor {
	return &Executor{
		submitter: submitter,
		symbol:    symbol,
		cooldown:  cooldown,
		log:       log,
		now:       time.Now,
	}
}

// SetHedge submits the full target perp position as one order: size is the
// absolute value of the target and side follows the target's sign. Nothing
// goes out when the target already matches the current position or when
// the attempt falls inside the cooldown window; the disposition says which.
// The window opens at attempt time, before the submit call, so a slow or
// failing venue cannot be hammered.
func (e *Executor) SetHedge(ctx context.Context, target, current float64, price *float64) (Receipt, Disposition, error) {
	if target == current {
		return Receipt{}, DispositionNoChange, nil
	}

	e.mu.Lock()
	now := e.now()
	if !e.lastAction.IsZero() && now.Sub(e.lastAction) < e.cooldown {
		e.mu.Unlock()
		e.log.Debug("hedge attempt inside cooldown window",
			zap.Time("last_action", e.lastAction),
			zap.Duration("cooldown", e.cooldown))
		return Receipt{}, DispositionThrottled, nil
	}
	e.lastAction = now
	e.mu.Unlock()

	side := SideBuy
	if target < 0 {
		side = SideSell
	}
	order := Order{
		Symbol: e.symbol,
		Side:   side,
		Size:   math.Abs(target),
		Price:  price,
	}
	receipt, err := e.submitter.Submit(ctx, order)
	if err != nil {
		// the window stays open so the next cycle cannot hammer the venue
		return Receipt{}, DispositionFailed, fmt.Errorf("submit hedge order: %w", err)
	}
	e.log.Info("hedge order submitted",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("size", order.Size),
		zap.String("status", receipt.Status),
		zap.String("order_id", receipt.OrderID))
	return receipt, DispositionSubmitted, nil
}

// LastAction returns the time of the most recent attempt that opened a
// cooldown window, zero if none has.
func (e *Executor) LastAction() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAction
}
