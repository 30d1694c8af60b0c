package ratelimit

import (
	"time"

	"github.com/l2laihub/creditengine/internal/model"
)

// windows holds the calendar-aligned starts of the current hour, day and month.
type windows struct {
	hour  time.Time
	day   time.Time
	month time.Time
}

func windowsAt(now time.Time, loc *time.Location) windows {
	t := now.In(loc)
	y, m, d := t.Date()
	return windows{
		hour:  time.Date(y, m, d, t.Hour(), 0, 0, 0, loc),
		day:   time.Date(y, m, d, 0, 0, 0, 0, loc),
		month: time.Date(y, m, 1, 0, 0, 0, 0, loc),
	}
}

func (w windows) hourlyResetAt() time.Time {
	return time.Date(w.hour.Year(), w.hour.Month(), w.hour.Day(), w.hour.Hour()+1, 0, 0, 0, w.hour.Location())
}

func (w windows) dailyResetAt() time.Time {
	return w.day.AddDate(0, 0, 1)
}

func (w windows) monthlyResetAt() time.Time {
	return w.month.AddDate(0, 1, 0)
}

// seed returns a zeroed counter row positioned at the current windows.
func (w windows) seed(identifier, resource string) *model.RateTracking {
	return &model.RateTracking{
		Identifier:       identifier,
		Resource:         resource,
		LastHourlyReset:  w.hour,
		LastDailyReset:   w.day,
		LastMonthlyReset: w.month,
	}
}

// applyResets zeroes every window whose boundary has been crossed since its
// last reset and moves the marker forward. Reports whether anything changed.
func applyResets(tr *model.RateTracking, w windows) bool {
	changed := false
	if tr.LastHourlyReset.Before(w.hour) {
		tr.HourlyCount = 0
		tr.LastHourlyReset = w.hour
		changed = true
	}
	if tr.LastDailyReset.Before(w.day) {
		tr.DailyCount = 0
		tr.LastDailyReset = w.day
		changed = true
	}
	if tr.LastMonthlyReset.Before(w.month) {
		tr.MonthlyCount = 0
		tr.LastMonthlyReset = w.month
		changed = true
	}
	return changed
}

// evaluate checks hourly, daily, monthly and cooldown in that order.
func evaluate(tr *model.RateTracking, cfg *model.RateLimitConfig, now time.Time, w windows) *model.RateLimitResult {
	res := &model.RateLimitResult{
		Allowed:          true,
		HourlyRemaining:  max(cfg.HourlyLimit-tr.HourlyCount, 0),
		DailyRemaining:   max(cfg.DailyLimit-tr.DailyCount, 0),
		MonthlyRemaining: -1,
		CooldownSeconds:  cfg.CooldownSeconds,
		HourlyResetAt:    w.hourlyResetAt(),
		DailyResetAt:     w.dailyResetAt(),
		MonthlyResetAt:   w.monthlyResetAt(),
	}
	if cfg.MonthlyLimit != nil {
		res.MonthlyRemaining = max(*cfg.MonthlyLimit-tr.MonthlyCount, 0)
	}

	reject := func(reason model.RateLimitReason, at time.Time) *model.RateLimitResult {
		res.Allowed = false
		res.Reason = reason
		res.RetryAt = &at
		return res
	}

	switch {
	case tr.HourlyCount >= cfg.HourlyLimit:
		return reject(model.RateLimitReasonHourly, res.HourlyResetAt)
	case tr.DailyCount >= cfg.DailyLimit:
		return reject(model.RateLimitReasonDaily, res.DailyResetAt)
	case cfg.MonthlyLimit != nil && tr.MonthlyCount >= *cfg.MonthlyLimit:
		return reject(model.RateLimitReasonMonthly, res.MonthlyResetAt)
	case cfg.CooldownSeconds > 0 && tr.LastUsedAt != nil && now.Sub(*tr.LastUsedAt) < cfg.Cooldown():
		return reject(model.RateLimitReasonCooldown, tr.LastUsedAt.Add(cfg.Cooldown()))
	}
	return res
}
