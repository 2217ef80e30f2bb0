package model

import (
	"math"
	"time"
)

// Tier is a named subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierTeam       Tier = "team"
	TierEnterprise Tier = "enterprise"
)

// Rank orders tiers from free (0) upwards. Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPro:
		return 1
	case TierTeam:
		return 2
	case TierEnterprise:
		return 3
	}
	return -1
}

// Feature identifies a gated capability.
type Feature string

const (
	FeatureAPIAccess         Feature = "api_access"
	FeaturePrioritySupport   Feature = "priority_support"
	FeatureAdvancedAnalytics Feature = "advanced_analytics"
	FeatureTeamSeats         Feature = "team_seats"
	FeatureUsageExport       Feature = "usage_export"
	FeatureSSO               Feature = "sso"
	FeatureAuditLog          Feature = "audit_log"
)

// Window is the recurring period over which usage is counted.
type Window string

const (
	WindowMonthly Window = "monthly"
	WindowDaily   Window = "daily"
)

// Start returns the start of the window containing t, anchored in UTC.
func (w Window) Start(t time.Time) time.Time {
	t = t.UTC()
	if w == WindowDaily {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the start of the window following the one starting at start.
func (w Window) Next(start time.Time) time.Time {
	if w == WindowDaily {
		return start.AddDate(0, 0, 1)
	}
	return start.AddDate(0, 1, 0)
}

// Quota is either a finite per-window unit limit or unlimited. The unlimited
// case is a tagged state rather than a negative sentinel so remaining-quota
// arithmetic never touches it.
type Quota struct {
	Limit     int64 `json:"limit"`
	Unlimited bool  `json:"unlimited"`
}

// QuotaOf returns a finite quota of n units per window.
func QuotaOf(n int64) Quota {
	return Quota{Limit: n}
}

// UnlimitedQuota returns the unlimited quota state.
func UnlimitedQuota() Quota {
	return Quota{Unlimited: true}
}

// Plan is the immutable per-tier configuration.
type Plan struct {
	Tier     Tier      `json:"tier"`
	Quota    Quota     `json:"quota"`
	Window   Window    `json:"window"`
	Features []Feature `json:"features"`
}

// HasFeature reports whether the plan's base feature set contains f.
func (p *Plan) HasFeature(f Feature) bool {
	for _, pf := range p.Features {
		if pf == f {
			return true
		}
	}
	return false
}

// SaturatingAdd adds two non-negative counts, capping at MaxInt64 instead of
// wrapping.
func SaturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
