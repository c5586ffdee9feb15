package account

import (
	"context"
	"errors"
	"strings"

	"lp-hedge-bot/internal/hl/rest"

	"go.uber.org/zap"
)

// Snapshot is the per-cycle view of the perp account: the signed position
// in the hedged asset plus margin headroom. MarginRatio is account value
// over total margin used; HasMarginRatio is false when no margin is in use
// so callers do not misread a flat account as distressed.
type Snapshot struct {
	Position       float64
	MarginUSD      float64
	MarginRatio    float64
	HasMarginRatio bool
}

type Account struct {
	rest   *rest.Client
	log    *zap.Logger
	user   string
	symbol string
}

func New(restClient *rest.Client, log *zap.Logger, user, symbol string) *Account {
	return &Account{
		rest:   restClient,
		log:    log,
		user:   strings.TrimSpace(user),
		symbol: symbol,
	}
}

// Fetch pulls the clearinghouse state and reduces it to a Snapshot.
func (a *Account) Fetch(ctx context.Context) (Snapshot, error) {
	if a.rest == nil {
		return Snapshot{}, errors.New("rest client is required")
	}
	if a.user == "" {
		return Snapshot{}, errors.New("account user is required")
	}
	state, err := a.rest.Info(ctx, rest.InfoRequest{Type: "clearinghouseState", User: a.user})
	if err != nil {
		return Snapshot{}, err
	}
	return parseClearinghouseState(state, a.symbol), nil
}

func parseClearinghouseState(payload map[string]any, symbol string) Snapshot {
	var snap Snapshot
	if payload == nil {
		return snap
	}
	snap.Position = positionSize(payload, symbol)

	summary, ok := payload["marginSummary"].(map[string]any)
	if !ok {
		summary, _ = payload["crossMarginSummary"].(map[string]any)
	}
	if summary == nil {
		return snap
	}
	accountValue, okValue := floatFromAny(summary["accountValue"])
	if okValue {
		snap.MarginUSD = accountValue
	}
	marginUsed, okUsed := floatFromAny(summary["totalMarginUsed"])
	if okValue && okUsed && marginUsed > 0 {
		snap.MarginRatio = accountValue / marginUsed
		snap.HasMarginRatio = true
	}
	return snap
}

func positionSize(payload map[string]any, symbol string) float64 {
	raw, ok := payload["assetPositions"].([]any)
	if !ok {
		return 0
	}
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pos := entry
		if nested, ok := entry["position"].(map[string]any); ok {
			pos = nested
		}
		coin := stringFromAny(pos["coin"])
		if coin == "" {
			coin = stringFromAny(pos["symbol"])
		}
		if !strings.EqualFold(coin, symbol) {
			continue
		}
		if size, ok := floatFromAny(pos["szi"]); ok {
			return size
		}
		if size, ok := floatFromAny(pos["size"]); ok {
			return size
		}
	}
	return 0
}
