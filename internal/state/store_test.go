package state

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	snaps := []Snapshot{
		{Time: base, LPDelta: 10, PerpPosition: -10, Price: 2000, MarginRatio: 2.5, Volatility: 5, FundingRate: 0.01, Action: "hold"},
		{Time: base.Add(5 * time.Second), LPDelta: 11, PerpPosition: -10, Price: 2010, MarginRatio: 2.4, Volatility: 6, FundingRate: 0.01, Action: "adjust"},
	}
	for _, snap := range snaps {
		if err := store.InsertSnapshot(ctx, snap); err != nil {
			t.Fatalf("insert snapshot: %v", err)
		}
	}

	got, err := store.SnapshotsSince(ctx, base)
	if err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(got))
	}
	if got[0].Action != "hold" || got[1].Action != "adjust" {
		t.Fatalf("snapshots out of order: %+v", got)
	}
	if got[1].LPDelta != 11 {
		t.Fatalf("expected lp delta 11, got %g", got[1].LPDelta)
	}

	later, err := store.SnapshotsSince(ctx, base.Add(time.Second))
	if err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if len(later) != 1 {
		t.Fatalf("cutoff should exclude first snapshot, got %d", len(later))
	}
}

func TestInsertExecution(t *testing.T) {
	store := newTestStore(t)
	err := store.InsertExecution(context.Background(), Execution{
		Time: time.Now(), Side: "sell", Size: 10, Status: "submitted", OrderID: "oid-1",
	})
	if err != nil {
		t.Fatalf("insert execution: %v", err)
	}
}

func TestDailyMetricsAccumulation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := "2024-06-01"

	if _, ok, err := store.Daily(ctx, day); err != nil || ok {
		t.Fatalf("expected no metrics yet: ok=%v err=%v", ok, err)
	}

	if err := store.AccumulateFundingCost(ctx, day, 1.5); err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if err := store.AccumulateFundingCost(ctx, day, 0.5); err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if err := store.RecordDailyPnL(ctx, day, 12.0, -3.0); err != nil {
		t.Fatalf("record pnl: %v", err)
	}

	m, ok, err := store.Daily(ctx, day)
	if err != nil || !ok {
		t.Fatalf("expected metrics: ok=%v err=%v", ok, err)
	}
	if m.FundingCost != 2.0 {
		t.Fatalf("expected funding cost 2, got %g", m.FundingCost)
	}
	if want := 12.0 - 3.0 - 2.0; math.Abs(m.NetPnL()-want) > 1e-12 {
		t.Fatalf("expected net pnl %g, got %g", want, m.NetPnL())
	}
}
