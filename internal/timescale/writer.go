package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"lp-hedge-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// CycleSnapshot mirrors one hedge cycle into long-term storage for
// dashboards. The local sqlite store stays the source of truth for reports;
// this stream is best-effort.
type CycleSnapshot struct {
	Time           time.Time
	Pair           string
	PerpAsset      string
	LPDelta        float64
	PerpPosition   float64
	Price          float64
	NotionalUSD    float64
	Volatility     float64
	FundingRate    float64
	TargetLeverage float64
	MarginRatio    float64
	HasMarginRatio bool
	Action         string
	SafeMode       bool
}

// ExecutionEvent records a hedge order handed to the venue.
type ExecutionEvent struct {
	Time    time.Time
	Asset   string
	Side    string
	Size    float64
	Status  string
	OrderID string
}

// Writer drains cycle snapshots and execution events to TimescaleDB on a
// background goroutine. Writes never block the hedge loop: a full queue
// drops the record and logs once.
type Writer struct {
	db       *sql.DB
	log      *zap.Logger
	schema   string
	cycles   chan CycleSnapshot
	execs    chan ExecutionEvent
	started  atomic.Bool
	dropCyc  atomic.Uint64
	dropExec atomic.Uint64
}

// New returns nil when the sink is disabled; a nil Writer is safe to use.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		cycles: make(chan CycleSnapshot, queueSize),
		execs:  make(chan ExecutionEvent, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueCycle(snap CycleSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.cycles <- snap:
		return
	default:
		if w.dropCyc.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale cycle queue full")
		}
	}
}

func (w *Writer) EnqueueExecution(ev ExecutionEvent) {
	if w == nil {
		return
	}
	select {
	case w.execs <- ev:
		return
	default:
		if w.dropExec.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale execution queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-w.cycles:
			w.writeCycle(ctx, snap)
		case ev := <-w.execs:
			w.writeExecution(ctx, ev)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		pair TEXT NOT NULL,
		perp_asset TEXT NOT NULL,
		lp_delta DOUBLE PRECISION NOT NULL,
		perp_position DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		notional_usd DOUBLE PRECISION NOT NULL,
		volatility DOUBLE PRECISION NOT NULL,
		funding_rate DOUBLE PRECISION NOT NULL,
		target_leverage DOUBLE PRECISION NOT NULL,
		margin_ratio DOUBLE PRECISION NOT NULL,
		has_margin_ratio BOOLEAN NOT NULL,
		action TEXT NOT NULL,
		safe_mode BOOLEAN NOT NULL
	)`, w.table("hedge_cycles"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		asset TEXT NOT NULL,
		side TEXT NOT NULL,
		size DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		order_id TEXT NOT NULL
	)`, w.table("hedge_executions"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("hedge_cycles"))); err != nil && w.log != nil {
		w.log.Warn("timescale hedge_cycles hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("hedge_executions"))); err != nil && w.log != nil {
		w.log.Warn("timescale hedge_executions hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeCycle(ctx context.Context, snap CycleSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, pair, perp_asset, lp_delta, perp_position, price, notional_usd,
		volatility, funding_rate, target_leverage, margin_ratio, has_margin_ratio,
		action, safe_mode
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	)`, w.table("hedge_cycles"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.Pair,
		snap.PerpAsset,
		snap.LPDelta,
		snap.PerpPosition,
		snap.Price,
		snap.NotionalUSD,
		snap.Volatility,
		snap.FundingRate,
		snap.TargetLeverage,
		snap.MarginRatio,
		snap.HasMarginRatio,
		snap.Action,
		snap.SafeMode,
	); err != nil && w.log != nil {
		w.log.Warn("timescale cycle insert failed", zap.Error(err))
	}
}

func (w *Writer) writeExecution(ctx context.Context, ev ExecutionEvent) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, asset, side, size, status, order_id
	) VALUES (
		$1,$2,$3,$4,$5,$6
	)`, w.table("hedge_executions"))
	if _, err := w.db.ExecContext(ctx, query,
		ev.Time,
		ev.Asset,
		ev.Side,
		ev.Size,
		ev.Status,
		ev.OrderID,
	); err != nil && w.log != nil {
		w.log.Warn("timescale execution insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
