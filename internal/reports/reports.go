package reports

import (
	"fmt"
	"math"
	"strings"

	"lp-hedge-bot/internal/state"
)

// BuildDaily renders the Markdown daily summary. A day with no recorded
// metrics still produces a report with zeroed PnL so the schedule stays
// observable.
func BuildDaily(day string, m state.DailyMetrics, found bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily report %s*\n", day)
	if !found {
		b.WriteString("No metrics recorded.\n")
	}
	fmt.Fprintf(&b, "LP fees: %.4f\n", m.PnLLPFees)
	fmt.Fprintf(&b, "Perp PnL: %.4f\n", m.PnLPerp)
	fmt.Fprintf(&b, "Funding cost: %.4f\n", m.FundingCost)
	fmt.Fprintf(&b, "Net PnL: %.4f", m.NetPnL())
	return b.String()
}

// BuildWeekly renders stats over a week of cycle snapshots: average and
// worst absolute delta, average volatility, and the action mix.
func BuildWeekly(snaps []state.Snapshot) string {
	var b strings.Builder
	b.WriteString("*Weekly report*\n")
	if len(snaps) == 0 {
		b.WriteString("No snapshots recorded.")
		return b.String()
	}

	var sumAbsDelta, worstAbsDelta, sumVol float64
	actions := make(map[string]int)
	for _, snap := range snaps {
		absDelta := math.Abs(snap.LPDelta + snap.PerpPosition)
		sumAbsDelta += absDelta
		if absDelta > worstAbsDelta {
			worstAbsDelta = absDelta
		}
		sumVol += snap.Volatility
		actions[snap.Action]++
	}
	n := float64(len(snaps))
	fmt.Fprintf(&b, "Cycles: %d\n", len(snaps))
	fmt.Fprintf(&b, "Avg |delta|: %.6f\n", sumAbsDelta/n)
	fmt.Fprintf(&b, "Worst |delta|: %.6f\n", worstAbsDelta)
	fmt.Fprintf(&b, "Avg volatility: %.6f\n", sumVol/n)
	fmt.Fprintf(&b, "Adjustments: %d\n", actions["adjust"])
	fmt.Fprintf(&b, "Holds: %d", actions["hold"])
	return b.String()
}
