package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// Snapshot is one hedge cycle's observable state, persisted for reports
// and post-mortems.
type Snapshot struct {
	Time         time.Time
	LPDelta      float64
	PerpPosition float64
	Price        float64
	MarginRatio  float64
	Volatility   float64
	FundingRate  float64
	Action       string
}

// Execution records an order handed to the venue.
type Execution struct {
	Time    time.Time
	Side    string
	Size    float64
	Status  string
	OrderID string
}

// DailyMetrics aggregates one calendar day of PnL components.
type DailyMetrics struct {
	Day         string
	PnLLPFees   float64
	PnLPerp     float64
	FundingCost float64
}

// NetPnL is LP fee income plus perp PnL less funding paid.
func (m DailyMetrics) NetPnL() float64 {
	return m.PnLLPFees + m.PnLPerp - m.FundingCost
}

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			lp_delta REAL NOT NULL,
			perp_position REAL NOT NULL,
			price REAL NOT NULL,
			margin_ratio REAL NOT NULL,
			volatility REAL NOT NULL,
			funding_rate REAL NOT NULL,
			action TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			side TEXT NOT NULL,
			size REAL NOT NULL,
			status TEXT NOT NULL,
			order_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metrics_daily (
			day TEXT PRIMARY KEY,
			pnl_lp_fees REAL NOT NULL DEFAULT 0,
			pnl_perp REAL NOT NULL DEFAULT 0,
			funding_cost REAL NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (ts, lp_delta, perp_position, price, margin_ratio, volatility, funding_rate, action)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Time.UnixMilli(), snap.LPDelta, snap.PerpPosition, snap.Price,
		snap.MarginRatio, snap.Volatility, snap.FundingRate, snap.Action)
	return err
}

func (s *Store) InsertExecution(ctx context.Context, ex Execution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (ts, side, size, status, order_id) VALUES (?, ?, ?, ?, ?)`,
		ex.Time.UnixMilli(), ex.Side, ex.Size, ex.Status, ex.OrderID)
	return err
}

// AccumulateFundingCost adds to the day's running funding total,
// creating the row on first touch. Day is formatted 2006-01-02.
func (s *Store) AccumulateFundingCost(ctx context.Context, day string, cost float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics_daily (day, funding_cost) VALUES (?, ?)
		 ON CONFLICT(day) DO UPDATE SET funding_cost = funding_cost + excluded.funding_cost`,
		day, cost)
	return err
}

// RecordDailyPnL upserts the LP fee and perp PnL components for a day.
func (s *Store) RecordDailyPnL(ctx context.Context, day string, lpFees, perp float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics_daily (day, pnl_lp_fees, pnl_perp) VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET pnl_lp_fees = excluded.pnl_lp_fees, pnl_perp = excluded.pnl_perp`,
		day, lpFees, perp)
	return err
}

func (s *Store) Daily(ctx context.Context, day string) (DailyMetrics, bool, error) {
	m := DailyMetrics{Day: day}
	err := s.db.QueryRowContext(ctx,
		`SELECT pnl_lp_fees, pnl_perp, funding_cost FROM metrics_daily WHERE day = ?`, day).
		Scan(&m.PnLLPFees, &m.PnLPerp, &m.FundingCost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DailyMetrics{Day: day}, false, nil
		}
		return DailyMetrics{}, false, err
	}
	return m, true, nil
}

// SnapshotsSince returns snapshots at or after the cutoff, oldest first.
func (s *Store) SnapshotsSince(ctx context.Context, since time.Time) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, lp_delta, perp_position, price, margin_ratio, volatility, funding_rate, action
		 FROM snapshots WHERE ts >= ? ORDER BY ts ASC`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var ts int64
		if err := rows.Scan(&ts, &snap.LPDelta, &snap.PerpPosition, &snap.Price,
			&snap.MarginRatio, &snap.Volatility, &snap.FundingRate, &snap.Action); err != nil {
			return nil, err
		}
		snap.Time = time.UnixMilli(ts).UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
