package market

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"lp-hedge-bot/internal/hl/rest"
	"lp-hedge-bot/internal/hl/ws"

	"go.uber.org/zap"
)

// hoursPerYear annualizes Hyperliquid's hourly funding rate.
const hoursPerYear = 24 * 365

// PerpContext is the slice of metaAndAssetCtxs the hedge loop cares about.
type PerpContext struct {
	Index       int
	FundingRate float64
	OraclePrice float64
	MarkPrice   float64
	SzDecimals  int
}

// MarketData caches perp mid prices and contexts. Mids stream over the
// websocket; contexts refresh over REST on a window so the funding rate
// stays current without hammering /info.
type MarketData struct {
	rest *rest.Client
	ws   *ws.Client
	log  *zap.Logger

	mu               sync.RWMutex
	midPrices        map[string]float64
	perpCtx          map[string]PerpContext
	lastCtxRefresh   time.Time
	ctxRefreshWindow time.Duration
}

func New(restClient *rest.Client, wsClient *ws.Client, log *zap.Logger) *MarketData {
	return &MarketData{
		rest:             restClient,
		ws:               wsClient,
		log:              log,
		midPrices:        make(map[string]float64),
		perpCtx:          make(map[string]PerpContext),
		ctxRefreshWindow: 30 * time.Second,
	}
}

func (m *MarketData) Start(ctx context.Context) error {
	if m.ws == nil {
		return nil
	}
	if err := m.ws.Connect(ctx); err != nil {
		return err
	}
	sub := map[string]any{"method": "subscribe", "subscription": map[string]any{"type": "allMids"}}
	if err := m.ws.Subscribe(ctx, sub); err != nil {
		return err
	}
	if err := m.RefreshContexts(ctx); err != nil {
		m.log.Warn("context refresh failed", zap.Error(err))
	}
	go func() {
		_ = m.ws.Run(ctx, m.handleMessage)
	}()
	return nil
}

// RefreshContexts pulls perp metadata when the refresh window has lapsed.
func (m *MarketData) RefreshContexts(ctx context.Context) error {
	if m.rest == nil {
		return nil
	}
	if !m.shouldRefresh() {
		return nil
	}
	resp, err := m.rest.InfoAny(ctx, rest.InfoRequest{Type: "metaAndAssetCtxs"})
	if err != nil {
		return err
	}
	perpCtx, err := parsePerpContexts(resp)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.perpCtx = perpCtx
	m.lastCtxRefresh = time.Now().UTC()
	m.mu.Unlock()
	return nil
}

func (m *MarketData) shouldRefresh() bool {
	m.mu.RLock()
	last := m.lastCtxRefresh
	window := m.ctxRefreshWindow
	m.mu.RUnlock()
	if last.IsZero() {
		return true
	}
	return time.Since(last) >= window
}

// Mid returns the mid price for an asset, falling back to a REST snapshot
// when the websocket has not delivered one yet.
func (m *MarketData) Mid(ctx context.Context, asset string) (float64, error) {
	m.mu.RLock()
	price, ok := m.midPrices[asset]
	m.mu.RUnlock()
	if ok {
		return price, nil
	}
	resp, err := m.rest.Info(ctx, rest.InfoRequest{Type: "allMids"})
	if err != nil {
		return 0, err
	}
	m.updateMids(resp)
	m.mu.RLock()
	price, ok = m.midPrices[asset]
	m.mu.RUnlock()
	if !ok {
		return 0, errors.New("mid price not found")
	}
	return price, nil
}

// FundingRate returns the current hourly funding rate for the asset.
func (m *MarketData) FundingRate(asset string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.perpCtx[asset]
	if !ok {
		return 0, false
	}
	return ctx.FundingRate, true
}

// FundingAPR annualizes the hourly funding rate.
func (m *MarketData) FundingAPR(asset string) (float64, bool) {
	rate, ok := m.FundingRate(asset)
	if !ok {
		return 0, false
	}
	return rate * hoursPerYear, true
}

func (m *MarketData) PerpContext(asset string) (PerpContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.perpCtx[asset]
	return ctx, ok
}

func (m *MarketData) PerpAssetID(asset string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.perpCtx[asset]
	if !ok {
		return 0, false
	}
	return ctx.Index, true
}

func (m *MarketData) handleMessage(msg json.RawMessage) {
	var payload map[string]any
	if err := json.Unmarshal(msg, &payload); err != nil {
		m.log.Debug("ws decode error", zap.Error(err))
		return
	}
	m.updateMids(payload)
}

func (m *MarketData) updateMids(payload map[string]any) {
	var mids map[string]any
	if data, ok := payload["data"].(map[string]any); ok {
		if raw, ok := data["mids"].(map[string]any); ok {
			mids = raw
		}
	}
	if mids == nil {
		if raw, ok := payload["mids"].(map[string]any); ok {
			mids = raw
		}
	}
	if mids == nil {
		// /info allMids returns a flat map of symbol -> mid.
		if _, hasData := payload["data"]; !hasData {
			mids = payload
		}
	}
	if mids == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for asset, v := range mids {
		if f, ok := floatFromAny(v); ok {
			m.midPrices[asset] = f
		}
	}
}
