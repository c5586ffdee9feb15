package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"lp-hedge-bot/internal/account"
	"lp-hedge-bot/internal/alerts"
	"lp-hedge-bot/internal/config"
	"lp-hedge-bot/internal/exec"
	"lp-hedge-bot/internal/hedge"
	"lp-hedge-bot/internal/hl/exchange"
	"lp-hedge-bot/internal/hl/rest"
	"lp-hedge-bot/internal/hl/ws"
	"lp-hedge-bot/internal/market"
	"lp-hedge-bot/internal/metrics"
	"lp-hedge-bot/internal/risk"
	"lp-hedge-bot/internal/state"
	"lp-hedge-bot/internal/timescale"
	"lp-hedge-bot/internal/uniswap"

	"go.uber.org/zap"
)

// positionSource feeds LP position data into the cycle.
type positionSource interface {
	Positions(ctx context.Context, owner string) ([]uniswap.Position, error)
	PoolState(ctx context.Context, poolID string) (*uniswap.Pool, error)
}

// accountSource feeds the perp account state into the cycle.
type accountSource interface {
	Fetch(ctx context.Context) (account.Snapshot, error)
}

// priceSource feeds perp prices and funding into the cycle.
type priceSource interface {
	Mid(ctx context.Context, asset string) (float64, error)
	FundingRate(asset string) (float64, bool)
	FundingAPR(asset string) (float64, bool)
	RefreshContexts(ctx context.Context) error
}

type App struct {
	cfg          *config.Config
	log          *zap.Logger
	store        *state.Store
	positions    positionSource
	account      accountSource
	prices       priceSource
	market       *market.MarketData
	tracker      *market.VolatilityTracker
	safeMode     *risk.SafeMode
	orchestrator *hedge.Orchestrator
	executor     *exec.Executor
	notifier     *alerts.Notifier
	metrics      *metrics.Metrics
	timescale    *timescale.Writer
	prom         *metrics.Prometheus
	owner        string
	live         bool
	now          func() time.Time

	cycleRunning atomic.Bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := state.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	owner := strings.TrimSpace(os.Getenv("WALLET_ADDRESS"))
	if owner == "" {
		return nil, errors.New("WALLET_ADDRESS is required")
	}

	subgraph := uniswap.NewClient(cfg.Subgraph, log)
	restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, log)
	wsClient := ws.New(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log)
	marketData := market.New(restClient, wsClient, log)
	acct := account.New(restClient, log, owner, cfg.Strategy.PerpAsset)

	live := cfg.Mode == config.ModeActive
	var submitter exec.Submitter = &simulatedSubmitter{log: log}
	if live {
		privateKey := strings.TrimSpace(os.Getenv("HL_PRIVATE_KEY"))
		if privateKey == "" {
			return nil, errors.New("HL_PRIVATE_KEY is required in active mode")
		}
		isMainnet := !strings.Contains(strings.ToLower(cfg.REST.BaseURL), "testnet")
		signer, err := exchange.NewSigner(privateKey, isMainnet)
		if err != nil {
			return nil, err
		}
		exClient, err := exchange.NewClient(cfg.REST.BaseURL, cfg.REST.Timeout, signer, "")
		if err != nil {
			return nil, err
		}
		submitter = &exchangeAdapter{client: exClient, market: marketData, asset: cfg.Strategy.PerpAsset}
	}

	executor := exec.New(submitter, cfg.Strategy.PerpAsset, cfg.Risk.Cooldown, log)
	safeMode := risk.NewSafeMode()
	orchestrator := hedge.New(cfg.Risk, safeMode, executor, live, log)
	notifier := alerts.NewNotifier(alerts.NewTelegram(cfg.Telegram, log), log)

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:          cfg,
		log:          log,
		store:        store,
		positions:    subgraph,
		account:      acct,
		prices:       marketData,
		market:       marketData,
		tracker:      market.NewVolatilityTracker(cfg.Strategy.VolLookback),
		safeMode:     safeMode,
		orchestrator: orchestrator,
		executor:     executor,
		notifier:     notifier,
		metrics:      m,
		timescale:    writer,
		prom:         prom,
		owner:        owner,
		live:         live,
		now:          time.Now,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer func() { _ = a.timescale.Close() }()

	if err := a.market.Start(ctx); err != nil {
		return err
	}
	a.timescale.Start(ctx)
	if a.prom != nil {
		a.serveMetrics(ctx)
	}
	go a.reportLoop(ctx)

	a.log.Info("hedge loop starting",
		zap.String("mode", a.cfg.Mode),
		zap.String("pair", a.cfg.Strategy.Pair),
		zap.String("perp_asset", a.cfg.Strategy.PerpAsset),
		zap.Duration("interval", a.cfg.Strategy.CycleInterval))

	ticker := time.NewTicker(a.cfg.Strategy.CycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	server := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: a.prom.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
}
