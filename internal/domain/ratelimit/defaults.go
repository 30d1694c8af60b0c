package ratelimit

import "github.com/l2laihub/creditengine/internal/model"

func intPtr(v int) *int { return &v }

// tierDefaults apply when no enabled configuration row exists for a (resource, tier) pair.
var tierDefaults = map[model.Tier]model.RateLimitConfig{
	model.TierAnonymous: {HourlyLimit: 3, DailyLimit: 5, CooldownSeconds: 60, Enabled: true},
	model.TierFree:      {HourlyLimit: 10, DailyLimit: 30, MonthlyLimit: intPtr(300), CooldownSeconds: 10, Enabled: true},
	model.TierPaid:      {HourlyLimit: 60, DailyLimit: 500, CooldownSeconds: 2, Enabled: true},
	model.TierPremium:   {HourlyLimit: 200, DailyLimit: 2000, CooldownSeconds: 0, Enabled: true},
}

// DefaultLimits returns the built-in limits for a tier. Unknown tiers get anonymous limits.
func DefaultLimits(resource string, tier model.Tier) *model.RateLimitConfig {
	if !tier.IsValid() {
		tier = model.TierAnonymous
	}
	cfg := tierDefaults[tier]
	cfg.Resource = resource
	cfg.Tier = tier
	if cfg.MonthlyLimit != nil {
		cfg.MonthlyLimit = intPtr(*cfg.MonthlyLimit)
	}
	return &cfg
}
