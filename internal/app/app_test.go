package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lp-hedge-bot/internal/account"
	"lp-hedge-bot/internal/alerts"
	"lp-hedge-bot/internal/config"
	"lp-hedge-bot/internal/exec"
	"lp-hedge-bot/internal/hedge"
	"lp-hedge-bot/internal/market"
	"lp-hedge-bot/internal/metrics"
	"lp-hedge-bot/internal/risk"
	"lp-hedge-bot/internal/state"
	"lp-hedge-bot/internal/uniswap"

	"go.uber.org/zap"
)

type stubPositions struct {
	positions []uniswap.Position
	pool      *uniswap.Pool
	err       error
}

func (s *stubPositions) Positions(ctx context.Context, owner string) ([]uniswap.Position, error) {
	_ = ctx
	_ = owner
	if s.err != nil {
		return nil, s.err
	}
	return s.positions, nil
}

func (s *stubPositions) PoolState(ctx context.Context, poolID string) (*uniswap.Pool, error) {
	_ = ctx
	_ = poolID
	if s.err != nil {
		return nil, s.err
	}
	return s.pool, nil
}

type stubAccount struct {
	snap account.Snapshot
	err  error
}

func (s *stubAccount) Fetch(ctx context.Context) (account.Snapshot, error) {
	_ = ctx
	return s.snap, s.err
}

type stubPrices struct {
	mid        float64
	funding    float64
	fundingAPR float64
	err        error
}

func (s *stubPrices) Mid(ctx context.Context, asset string) (float64, error) {
	_ = ctx
	_ = asset
	if s.err != nil {
		return 0, s.err
	}
	return s.mid, nil
}

func (s *stubPrices) FundingRate(asset string) (float64, bool) {
	_ = asset
	return s.funding, true
}

func (s *stubPrices) FundingAPR(asset string) (float64, bool) {
	_ = asset
	return s.fundingAPR, true
}

func (s *stubPrices) RefreshContexts(ctx context.Context) error {
	_ = ctx
	return nil
}

type captureSender struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureSender) Send(ctx context.Context, message string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) SendMarkdown(ctx context.Context, message string) error {
	return c.Send(ctx, message)
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

type recordingSubmitter struct {
	mu     sync.Mutex
	orders []exec.Order
}

func (r *recordingSubmitter) Submit(ctx context.Context, order exec.Order) (exec.Receipt, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	return exec.Receipt{Status: exec.StatusSubmitted, OrderID: "oid-1"}, nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func testConfig() *config.Config {
	return &config.Config{
		Mode: config.ModeActive,
		Strategy: config.StrategyConfig{
			Pair:          "WETH/USDC",
			BaseToken:     "WETH",
			QuoteToken:    "USDC",
			PerpAsset:     "ETH",
			PoolID:        "0xpool",
			CycleInterval: 5 * time.Second,
			VolLookback:   60,
		},
		Risk: config.RiskConfig{
			LeverageTarget:    2.0,
			DeltaTolerancePct: 0.005,
			MarginBufferPct:   0.25,
			FundingAlertPct:   0.15,
			Cooldown:          15 * time.Second,
		},
	}
}

func lpFixture() *stubPositions {
	sqrt := 1.0
	return &stubPositions{
		positions: []uniswap.Position{{ID: "p1", Deposited0: 10}},
		pool: &uniswap.Pool{
			ID:        "0xpool",
			SqrtPrice: &sqrt,
			Token0:    uniswap.Token{Symbol: "WETH", Decimals: 18},
			Token1:    uniswap.Token{Symbol: "USDC", Decimals: 6},
		},
	}
}

type testApp struct {
	app       *App
	submitter *recordingSubmitter
	sender    *captureSender
	positions *stubPositions
	account   *stubAccount
	prices    *stubPrices
}

func newTestApp(t *testing.T, live bool) *testApp {
	t.Helper()
	cfg := testConfig()
	if !live {
		cfg.Mode = config.ModeViewer
	}
	store, err := state.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := zap.NewNop()
	submitter := &recordingSubmitter{}
	executor := exec.New(submitter, cfg.Strategy.PerpAsset, cfg.Risk.Cooldown, log)
	safeMode := risk.NewSafeMode()
	sender := &captureSender{}
	positions := lpFixture()
	acct := &stubAccount{snap: account.Snapshot{Position: 0, MarginUSD: 5000, MarginRatio: 2.5, HasMarginRatio: true}}

	prices := &stubPrices{mid: 2000, funding: 0.00001, fundingAPR: 0.0876}

	a := &App{
		cfg:          cfg,
		log:          log,
		store:        store,
		positions:    positions,
		account:      acct,
		prices:       prices,
		tracker:      market.NewVolatilityTracker(cfg.Strategy.VolLookback),
		safeMode:     safeMode,
		orchestrator: hedge.New(cfg.Risk, safeMode, executor, live, log),
		executor:     executor,
		notifier:     alerts.NewNotifier(sender, log),
		metrics:      metrics.NewNoop(),
		owner:        "0xabc",
		live:         live,
		now:          time.Now,
	}
	return &testApp{app: a, submitter: submitter, sender: sender, positions: positions, account: acct, prices: prices}
}

func TestCycleSubmitsHedgeWhenLive(t *testing.T) {
	ta := newTestApp(t, true)
	ta.app.cycle(context.Background())

	if ta.submitter.count() != 1 {
		t.Fatalf("expected 1 order, got %d", ta.submitter.count())
	}
	order := ta.submitter.orders[0]
	if order.Side != exec.SideSell || order.Size != 10 {
		t.Fatalf("expected sell 10, got %+v", order)
	}

	snaps, err := ta.app.store.SnapshotsSince(context.Background(), time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Action != "adjust" {
		t.Fatalf("expected adjust snapshot, got %+v", snaps)
	}
	if snaps[0].LPDelta != 10 || snaps[0].Price != 2000 {
		t.Fatalf("snapshot fields wrong: %+v", snaps[0])
	}
}

func TestCycleViewerNeverSubmits(t *testing.T) {
	ta := newTestApp(t, false)
	ta.app.cycle(context.Background())

	if ta.submitter.count() != 0 {
		t.Fatalf("viewer mode submitted %d orders", ta.submitter.count())
	}
	snaps, err := ta.app.store.SnapshotsSince(context.Background(), time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Action != "adjust" {
		t.Fatalf("decision should still be recorded in viewer mode, got %+v", snaps)
	}
}

func TestCycleSafeModeOnDataUnavailable(t *testing.T) {
	ta := newTestApp(t, true)
	ta.positions.err = errors.New("subgraph down")

	ta.app.cycle(context.Background())
	if !ta.app.safeMode.Active() {
		t.Fatal("safe mode should be active after data failure")
	}
	if ta.sender.count() != 1 {
		t.Fatalf("expected 1 safe mode notification, got %d", ta.sender.count())
	}

	// repeated failures do not re-notify
	ta.app.cycle(context.Background())
	if ta.sender.count() != 1 {
		t.Fatalf("expected no repeat notification, got %d", ta.sender.count())
	}
	if ta.submitter.count() != 0 {
		t.Fatal("no orders should go out while data is unavailable")
	}

	// recovery is edge triggered
	ta.positions.err = nil
	ta.app.cycle(context.Background())
	if ta.app.safeMode.Active() {
		t.Fatal("safe mode should clear on recovery")
	}
	if ta.sender.count() != 2 {
		t.Fatalf("expected recovery notification, got %d messages", ta.sender.count())
	}
}

func TestCycleAccountErrorSkipsDecision(t *testing.T) {
	ta := newTestApp(t, true)
	ta.account.err = errors.New("rest timeout")

	ta.app.cycle(context.Background())
	if ta.submitter.count() != 0 {
		t.Fatal("no orders on account failure")
	}
	if ta.sender.count() != 1 {
		t.Fatalf("expected account alert, got %d", ta.sender.count())
	}
	snaps, err := ta.app.store.SnapshotsSince(context.Background(), time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("no snapshot should persist on account failure, got %d", len(snaps))
	}
}

func TestCycleCooldownDropsSecondAdjust(t *testing.T) {
	ta := newTestApp(t, true)

	// account still reports a flat position, so both cycles want the same
	// adjust; only the first clears the cooldown window
	ta.app.cycle(context.Background())
	ta.app.cycle(context.Background())

	if ta.submitter.count() != 1 {
		t.Fatalf("cooldown should drop the second adjust, got %d orders", ta.submitter.count())
	}
}

func TestCycleFundingAlertUsesAnnualizedRate(t *testing.T) {
	ta := newTestApp(t, true)

	// an hourly rate of 0.005 annualizes to 43.8, far past the 0.15
	// threshold; comparing the raw hourly rate would never alert
	ta.prices.funding = 0.005
	ta.prices.fundingAPR = 43.8
	ta.app.cycle(context.Background())

	if ta.sender.count() != 1 {
		t.Fatalf("expected 1 funding alert, got %d messages", ta.sender.count())
	}
	if !strings.Contains(ta.sender.messages[0], "Funding APR") {
		t.Fatalf("expected funding alert, got %q", ta.sender.messages[0])
	}
}

func TestCycleNoFundingAlertBelowThreshold(t *testing.T) {
	ta := newTestApp(t, true)

	// 8.76% APR is under the default 0.15 threshold
	ta.app.cycle(context.Background())

	if ta.sender.count() != 0 {
		t.Fatalf("expected no alerts, got %d messages", ta.sender.count())
	}
}

func TestNextDaily(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 1, 19, 0, 0, 0, loc)
	next := nextDaily(now, 20)
	if next.Day() != 1 || next.Hour() != 20 {
		t.Fatalf("expected same-day 20:00, got %v", next)
	}

	now = time.Date(2024, 6, 1, 20, 0, 0, 0, loc)
	next = nextDaily(now, 20)
	if next.Day() != 2 {
		t.Fatalf("expected next-day 20:00, got %v", next)
	}
}

func TestNextWeekly(t *testing.T) {
	// 2024-06-01 is a Saturday (ISO day 6)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	next := nextWeekly(now, 7, 20)
	if next.Weekday() != time.Sunday || next.Day() != 2 {
		t.Fatalf("expected Sunday 2024-06-02, got %v", next)
	}
	next = nextWeekly(now, 6, 20)
	if next.Weekday() != time.Saturday || next.Day() != 1 {
		t.Fatalf("expected same Saturday evening, got %v", next)
	}
}

func TestNextReportFiresBothOnCoincidingInstant(t *testing.T) {
	// Saturday morning with the weekly report due the same Saturday: the
	// daily and weekly instants coincide and both must fire
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	at, fireDaily, fireWeekly := nextReport(now, 20, 6)
	if at.Day() != 1 || at.Hour() != 20 {
		t.Fatalf("expected Saturday 20:00, got %v", at)
	}
	if !fireDaily || !fireWeekly {
		t.Fatalf("both reports should fire, got daily=%v weekly=%v", fireDaily, fireWeekly)
	}

	// on other days only the daily fires
	at, fireDaily, fireWeekly = nextReport(now, 20, 7)
	if at.Weekday() != time.Saturday {
		t.Fatalf("expected Saturday daily, got %v", at)
	}
	if !fireDaily || fireWeekly {
		t.Fatalf("only the daily should fire, got daily=%v weekly=%v", fireDaily, fireWeekly)
	}
}
