package reports

import (
	"strings"
	"testing"
	"time"

	"lp-hedge-bot/internal/state"
)

func TestBuildDailyWithMetrics(t *testing.T) {
	m := state.DailyMetrics{Day: "2024-06-01", PnLLPFees: 12, PnLPerp: -3, FundingCost: 2}
	got := BuildDaily("2024-06-01", m, true)
	if !strings.Contains(got, "2024-06-01") {
		t.Fatalf("report missing day: %s", got)
	}
	if !strings.Contains(got, "Net PnL: 7.0000") {
		t.Fatalf("report missing net pnl: %s", got)
	}
	if strings.Contains(got, "No metrics recorded") {
		t.Fatalf("unexpected empty marker: %s", got)
	}
}

func TestBuildDailyMissingMetrics(t *testing.T) {
	got := BuildDaily("2024-06-02", state.DailyMetrics{Day: "2024-06-02"}, false)
	if !strings.Contains(got, "No metrics recorded") {
		t.Fatalf("expected empty marker: %s", got)
	}
	if !strings.Contains(got, "Net PnL: 0.0000") {
		t.Fatalf("expected zero net pnl: %s", got)
	}
}

func TestBuildWeekly(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := []state.Snapshot{
		{Time: base, LPDelta: 10, PerpPosition: -10, Volatility: 2, Action: "hold"},
		{Time: base.Add(time.Hour), LPDelta: 10, PerpPosition: -9.9, Volatility: 4, Action: "adjust"},
	}
	got := BuildWeekly(snaps)
	if !strings.Contains(got, "Cycles: 2") {
		t.Fatalf("missing cycle count: %s", got)
	}
	if !strings.Contains(got, "Worst |delta|: 0.100000") {
		t.Fatalf("missing worst delta: %s", got)
	}
	if !strings.Contains(got, "Avg volatility: 3.000000") {
		t.Fatalf("missing avg volatility: %s", got)
	}
	if !strings.Contains(got, "Adjustments: 1") || !strings.Contains(got, "Holds: 1") {
		t.Fatalf("missing action mix: %s", got)
	}
}

func TestBuildWeeklyEmpty(t *testing.T) {
	got := BuildWeekly(nil)
	if !strings.Contains(got, "No snapshots recorded") {
		t.Fatalf("expected empty marker: %s", got)
	}
}
