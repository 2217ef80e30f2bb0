package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FeatureOverrideRepository stores per-account promotional feature unlocks.
// Overrides are unioned with the tier's base feature set, never replacing it.
type FeatureOverrideRepository interface {
	// AddOverride is idempotent; granting an already-granted feature is not
	// an error.
	AddOverride(ctx context.Context, accountID string, feature model.Feature) error
	RemoveOverride(ctx context.Context, accountID string, feature model.Feature) error
	ListOverrides(ctx context.Context, accountID string) ([]model.Feature, error)
}

type featureOverrideRepo struct {
	pool *pgxpool.Pool
}

// NewFeatureOverrideRepo creates a new FeatureOverrideRepository.
func NewFeatureOverrideRepo(pool *pgxpool.Pool) FeatureOverrideRepository {
	return &featureOverrideRepo{pool: pool}
}

func (r *featureOverrideRepo) AddOverride(ctx context.Context, accountID string, feature model.Feature) error {
	const q = `
        INSERT INTO feature_overrides (account_id, feature)
        VALUES ($1, $2)
        ON CONFLICT (account_id, feature) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, q, accountID, feature); err != nil {
		return fmt.Errorf("adding feature override %s for account %s: %w", feature, accountID, wrapUnavailable(err))
	}
	return nil
}

func (r *featureOverrideRepo) RemoveOverride(ctx context.Context, accountID string, feature model.Feature) error {
	const q = `DELETE FROM feature_overrides WHERE account_id = $1 AND feature = $2`
	if _, err := r.pool.Exec(ctx, q, accountID, feature); err != nil {
		return fmt.Errorf("removing feature override %s for account %s: %w", feature, accountID, wrapUnavailable(err))
	}
	return nil
}

func (r *featureOverrideRepo) ListOverrides(ctx context.Context, accountID string) ([]model.Feature, error) {
	const q = `SELECT feature FROM feature_overrides WHERE account_id = $1 ORDER BY feature`
	rows, err := r.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing feature overrides for account %s: %w", accountID, wrapUnavailable(err))
	}
	defer rows.Close()

	var features []model.Feature
	for rows.Next() {
		var f model.Feature
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning feature override for account %s: %w", accountID, err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading feature overrides for account %s: %w", accountID, wrapUnavailable(err))
	}
	return features, nil
}
