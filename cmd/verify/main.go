package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"lp-hedge-bot/internal/account"
	"lp-hedge-bot/internal/config"
	"lp-hedge-bot/internal/hl/rest"
	"lp-hedge-bot/internal/logging"
	"lp-hedge-bot/internal/market"
	"lp-hedge-bot/internal/risk"
	"lp-hedge-bot/internal/strategy"
	"lp-hedge-bot/internal/uniswap"
)

// verify is a read-only diagnostic. It pulls LP positions, perp account
// state, and market data, then prints the hedge decision the bot would
// make right now. It never submits orders.

type report struct {
	Pair           string  `json:"pair"`
	PerpAsset      string  `json:"perp_asset"`
	Wallet         string  `json:"wallet"`
	LPDelta        float64 `json:"lp_delta"`
	PerpPosition   float64 `json:"perp_position"`
	NetDelta       float64 `json:"net_delta"`
	Price          float64 `json:"price"`
	NotionalUSD    float64 `json:"notional_usd"`
	MarginUSD      float64 `json:"margin_usd"`
	MarginRatio    float64 `json:"margin_ratio,omitempty"`
	FundingRate    float64 `json:"funding_rate"`
	FundingAPR     float64 `json:"funding_apr"`
	Action         string  `json:"action"`
	HedgeSize      float64 `json:"hedge_size"`
	TargetLeverage float64 `json:"target_leverage"`
	KillSwitch     bool    `json:"kill_switch"`
}

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	asJSON := flag.Bool("json", false, "emit the report as JSON")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	wallet := strings.TrimSpace(os.Getenv("WALLET_ADDRESS"))
	if wallet == "" {
		fatal(errors.New("WALLET_ADDRESS is required"))
	}

	ctx := context.Background()

	subgraph := uniswap.NewClient(cfg.Subgraph, log)
	positions, err := subgraph.Positions(ctx, wallet)
	if err != nil {
		fatal(fmt.Errorf("fetch positions: %w", err))
	}
	var pool *uniswap.Pool
	if cfg.Strategy.PoolID != "" {
		pool, err = subgraph.PoolState(ctx, cfg.Strategy.PoolID)
		if err != nil {
			fatal(fmt.Errorf("fetch pool: %w", err))
		}
	}
	lpDelta, err := uniswap.ComputeExposure(positions, pool, cfg.Strategy.BaseToken, cfg.Strategy.QuoteToken)
	if err != nil {
		fatal(fmt.Errorf("compute exposure: %w", err))
	}

	restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, log)
	md := market.New(restClient, nil, log)
	if err := md.RefreshContexts(ctx); err != nil {
		fatal(fmt.Errorf("refresh contexts: %w", err))
	}
	price, err := md.Mid(ctx, cfg.Strategy.PerpAsset)
	if err != nil {
		fatal(fmt.Errorf("fetch mid: %w", err))
	}
	fundingRate, _ := md.FundingRate(cfg.Strategy.PerpAsset)
	fundingAPR, _ := md.FundingAPR(cfg.Strategy.PerpAsset)

	snap, err := account.New(restClient, log, wallet, cfg.Strategy.PerpAsset).Fetch(ctx)
	if err != nil {
		fatal(fmt.Errorf("fetch account: %w", err))
	}

	decision := strategy.Compute(lpDelta, snap.Position, price, snap.MarginUSD, 0, fundingAPR, cfg.Risk)

	netDelta := lpDelta + snap.Position
	notionalLP := math.Abs(lpDelta) * price
	ratio := snap.MarginRatio
	if !snap.HasMarginRatio {
		ratio = math.Inf(1)
	}

	r := report{
		Pair:           cfg.Strategy.Pair,
		PerpAsset:      cfg.Strategy.PerpAsset,
		Wallet:         wallet,
		LPDelta:        lpDelta,
		PerpPosition:   snap.Position,
		NetDelta:       netDelta,
		Price:          price,
		NotionalUSD:    notionalLP,
		MarginUSD:      snap.MarginUSD,
		FundingRate:    fundingRate,
		FundingAPR:     fundingAPR,
		Action:         string(decision.Action),
		HedgeSize:      decision.HedgeSize,
		TargetLeverage: decision.TargetLeverage,
		KillSwitch:     risk.KillSwitch(netDelta, notionalLP, ratio, cfg.Risk),
	}
	if snap.HasMarginRatio {
		r.MarginRatio = snap.MarginRatio
	}

	if *asJSON {
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("pair=%s perp=%s wallet=%s\n", r.Pair, r.PerpAsset, r.Wallet)
	fmt.Printf("lp_delta=%.6f perp_position=%.6f net_delta=%.6f\n", r.LPDelta, r.PerpPosition, r.NetDelta)
	fmt.Printf("price=%.4f notional_usd=%.2f margin_usd=%.2f\n", r.Price, r.NotionalUSD, r.MarginUSD)
	if snap.HasMarginRatio {
		fmt.Printf("margin_ratio=%.4f\n", r.MarginRatio)
	} else {
		fmt.Println("margin_ratio=n/a (no margin in use)")
	}
	fmt.Printf("funding_rate=%.6f funding_apr=%.4f\n", r.FundingRate, r.FundingAPR)
	fmt.Printf("decision: action=%s hedge_size=%.6f target_leverage=%.2f kill_switch=%v\n",
		r.Action, r.HedgeSize, r.TargetLeverage, r.KillSwitch)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
