package service

import (
	"errors"

	"app/internal/config"
	"app/internal/model"
)

// ErrUnknownTier is returned for a tier outside the catalog. Accounts are
// validated on write, so hitting this is an internal invariant violation, not
// a caller mistake.
var ErrUnknownTier = errors.New("unknown tier")

// PlanCatalog is the immutable registry mapping a tier to its plan. Built
// once at startup; no mutation API.
type PlanCatalog interface {
	// Lookup is pure and total over the four known tiers.
	Lookup(tier model.Tier) (*model.Plan, error)
	// Plans returns all plans ordered by tier rank.
	Plans() []*model.Plan
}

type planCatalog struct {
	plans map[model.Tier]*model.Plan
}

// NewPlanCatalog builds the catalog from configured quota limits. Feature
// sets grow monotonically with tier rank; a higher tier never silently drops
// a lower tier's feature.
func NewPlanCatalog(cfg *config.Config) PlanCatalog {
	freeFeatures := []model.Feature{
		model.FeatureAPIAccess,
	}
	proFeatures := append(append([]model.Feature{}, freeFeatures...),
		model.FeaturePrioritySupport,
		model.FeatureAdvancedAnalytics,
	)
	teamFeatures := append(append([]model.Feature{}, proFeatures...),
		model.FeatureTeamSeats,
		model.FeatureUsageExport,
	)
	enterpriseFeatures := append(append([]model.Feature{}, teamFeatures...),
		model.FeatureSSO,
		model.FeatureAuditLog,
	)

	return &planCatalog{plans: map[model.Tier]*model.Plan{
		model.TierFree: {
			Tier:     model.TierFree,
			Quota:    model.QuotaOf(cfg.FreeMonthlyQuota),
			Window:   model.WindowMonthly,
			Features: freeFeatures,
		},
		model.TierPro: {
			Tier:     model.TierPro,
			Quota:    model.QuotaOf(cfg.ProMonthlyQuota),
			Window:   model.WindowMonthly,
			Features: proFeatures,
		},
		model.TierTeam: {
			Tier:     model.TierTeam,
			Quota:    model.QuotaOf(cfg.TeamMonthlyQuota),
			Window:   model.WindowMonthly,
			Features: teamFeatures,
		},
		model.TierEnterprise: {
			Tier:     model.TierEnterprise,
			Quota:    model.UnlimitedQuota(),
			Window:   model.WindowMonthly,
			Features: enterpriseFeatures,
		},
	}}
}

func (c *planCatalog) Lookup(tier model.Tier) (*model.Plan, error) {
	plan, ok := c.plans[tier]
	if !ok {
		return nil, ErrUnknownTier
	}
	return plan, nil
}

func (c *planCatalog) Plans() []*model.Plan {
	plans := make([]*model.Plan, 0, len(c.plans))
	for _, tier := range []model.Tier{model.TierFree, model.TierPro, model.TierTeam, model.TierEnterprise} {
		plans = append(plans, c.plans[tier])
	}
	return plans
}
