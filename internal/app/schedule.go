package app

import (
	"context"
	"time"

	"lp-hedge-bot/internal/reports"

	"go.uber.org/zap"
)

// reportLoop fires the daily and weekly report timers in the configured
// timezone. Falls back to UTC when the zone cannot be loaded.
func (a *App) reportLoop(ctx context.Context) {
	loc, err := time.LoadLocation(a.cfg.Reports.Timezone)
	if err != nil {
		a.log.Warn("invalid report timezone, using UTC",
			zap.String("timezone", a.cfg.Reports.Timezone), zap.Error(err))
		loc = time.UTC
	}
	for {
		now := a.now().In(loc)
		at, fireDaily, fireWeekly := nextReport(now, a.cfg.Reports.DailyHour, a.cfg.Reports.WeeklyDOW)

		timer := time.NewTimer(at.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if fireDaily {
				a.sendDailyReport(ctx, at)
			}
			if fireWeekly {
				a.sendWeeklyReport(ctx)
			}
		}
	}
}

// nextReport returns the next report instant and which reports fire at it.
// Daily and weekly share the configured hour, so on the weekly day both
// fire at the same instant and neither may be dropped.
func nextReport(now time.Time, dailyHour, weeklyDOW int) (at time.Time, fireDaily, fireWeekly bool) {
	daily := nextDaily(now, dailyHour)
	weekly := nextWeekly(now, weeklyDOW, dailyHour)
	at = daily
	if weekly.Before(at) {
		at = weekly
	}
	return at, at.Equal(daily), at.Equal(weekly)
}

// nextDaily returns the next occurrence of hour:00 strictly after now.
func nextDaily(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly returns the next occurrence of hour:00 on the given ISO day
// of week (1 Monday through 7 Sunday) strictly after now.
func nextWeekly(now time.Time, dow, hour int) time.Time {
	next := nextDaily(now, hour)
	for isoWeekday(next.Weekday()) != dow {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func (a *App) sendDailyReport(ctx context.Context, at time.Time) {
	day := at.Format("2006-01-02")
	m, found, err := a.store.Daily(ctx, day)
	if err != nil {
		a.log.Warn("daily metrics query failed", zap.Error(err))
		return
	}
	a.notifier.Report(ctx, reports.BuildDaily(day, m, found))
}

func (a *App) sendWeeklyReport(ctx context.Context) {
	since := a.now().UTC().AddDate(0, 0, -7)
	snaps, err := a.store.SnapshotsSince(ctx, since)
	if err != nil {
		a.log.Warn("weekly snapshot query failed", zap.Error(err))
		return
	}
	a.notifier.Report(ctx, reports.BuildWeekly(snaps))
}
