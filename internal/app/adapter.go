package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"lp-hedge-bot/internal/exec"
	"lp-hedge-bot/internal/hl/exchange"
	"lp-hedge-bot/internal/market"

	"go.uber.org/zap"
)

// slippagePct pads the IOC limit so a crossing order actually fills.
const slippagePct = 0.005

// exchangeAdapter turns exchange-neutral orders into signed Hyperliquid
// actions. Limit price defaults to the mid padded toward the taker side.
type exchangeAdapter struct {
	client *exchange.Client
	market *market.MarketData
	asset  string
}

func (x *exchangeAdapter) Submit(ctx context.Context, order exec.Order) (exec.Receipt, error) {
	assetID, ok := x.market.PerpAssetID(x.asset)
	if !ok {
		return exec.Receipt{}, fmt.Errorf("perp asset id not found for %s", x.asset)
	}
	isBuy := order.Side == exec.SideBuy
	limit := 0.0
	if order.Price != nil {
		limit = *order.Price
	} else {
		mid, err := x.market.Mid(ctx, x.asset)
		if err != nil {
			return exec.Receipt{}, err
		}
		if isBuy {
			limit = mid * (1 + slippagePct)
		} else {
			limit = mid * (1 - slippagePct)
		}
	}
	if limit <= 0 {
		return exec.Receipt{}, errors.New("derived limit price is invalid")
	}
	size := order.Size
	if perpCtx, ok := x.market.PerpContext(x.asset); ok && perpCtx.SzDecimals >= 0 {
		size = roundDown(size, perpCtx.SzDecimals)
	}
	if size <= 0 {
		return exec.Receipt{}, errors.New("order size rounds to zero")
	}
	limit = roundLimit(limit)

	wire, err := exchange.LimitOrderWire(assetID, isBuy, size, limit, false, exchange.TifIoc, "")
	if err != nil {
		return exec.Receipt{}, err
	}
	resp, err := x.client.PlaceOrder(ctx, wire)
	if err != nil {
		return exec.Receipt{}, err
	}
	return exec.Receipt{
		Status:  exec.StatusSubmitted,
		OrderID: exchange.OrderIDFromResponse(resp),
	}, nil
}

// simulatedSubmitter stands in for the exchange in viewer mode. It never
// talks to the venue; orders come back marked simulated.
type simulatedSubmitter struct {
	log *zap.Logger
}

func (s *simulatedSubmitter) Submit(ctx context.Context, order exec.Order) (exec.Receipt, error) {
	_ = ctx
	s.log.Info("simulated order",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("size", order.Size))
	return exec.Receipt{Status: exec.StatusSimulated}, nil
}

func roundDown(value float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Floor(value*scale) / scale
}

// roundLimit keeps limit prices to 5 significant figures, matching the
// venue's price grid.
func roundLimit(price float64) float64 {
	if price <= 0 {
		return price
	}
	digits := math.Ceil(math.Log10(price))
	scale := math.Pow10(int(5 - digits))
	return math.Round(price*scale) / scale
}
