package service

import (
	"context"
	"errors"
	"sort"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrFeatureNotAvailable is returned when an operation requires a capability
// the account's tier and overrides don't grant.
var ErrFeatureNotAvailable = errors.New("feature not available")

// FeatureService derives the capability set available to an account. The
// membership checks work purely on data loaded with the account, so they are
// safe on every hot-path request.
type FeatureService interface {
	// Capabilities returns the tier's base features unioned with the
	// account's overrides, sorted and deduplicated.
	Capabilities(account *model.Account) ([]model.Feature, error)
	// HasFeature is a side-effect-free membership test.
	HasFeature(account *model.Account, feature model.Feature) (bool, error)
	// GrantOverride records a promotional unlock on top of the tier's base
	// set. Overrides never replace base features.
	GrantOverride(ctx context.Context, accountID string, feature model.Feature) error
	RevokeOverride(ctx context.Context, accountID string, feature model.Feature) error
}

type featureService struct {
	catalog   PlanCatalog
	overrides repository.FeatureOverrideRepository
	logger    zerolog.Logger
}

// NewFeatureService creates a new FeatureService with a scoped logger.
func NewFeatureService(catalog PlanCatalog, overrides repository.FeatureOverrideRepository, logger zerolog.Logger) FeatureService {
	return &featureService{
		catalog:   catalog,
		overrides: overrides,
		logger:    logger.With().Str("service", "FeatureService").Logger(),
	}
}

func (s *featureService) Capabilities(account *model.Account) ([]model.Feature, error) {
	plan, err := s.catalog.Lookup(account.Tier)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Str("tier", string(account.Tier)).
			Msg("Account carries a tier outside the catalog")
		return nil, err
	}

	set := make(map[model.Feature]struct{}, len(plan.Features)+len(account.FeatureOverrides))
	for _, f := range plan.Features {
		set[f] = struct{}{}
	}
	for _, f := range account.FeatureOverrides {
		set[f] = struct{}{}
	}

	features := make([]model.Feature, 0, len(set))
	for f := range set {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })
	return features, nil
}

func (s *featureService) HasFeature(account *model.Account, feature model.Feature) (bool, error) {
	plan, err := s.catalog.Lookup(account.Tier)
	if err != nil {
		return false, err
	}
	if plan.HasFeature(feature) {
		return true, nil
	}
	for _, f := range account.FeatureOverrides {
		if f == feature {
			return true, nil
		}
	}
	return false, nil
}

func (s *featureService) GrantOverride(ctx context.Context, accountID string, feature model.Feature) error {
	if err := s.overrides.AddOverride(ctx, accountID, feature); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Str("feature", string(feature)).
			Msg("Failed to grant feature override")
		return err
	}
	return nil
}

func (s *featureService) RevokeOverride(ctx context.Context, accountID string, feature model.Feature) error {
	if err := s.overrides.RemoveOverride(ctx, accountID, feature); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Str("feature", string(feature)).
			Msg("Failed to revoke feature override")
		return err
	}
	return nil
}
