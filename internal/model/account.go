package model

import "time"

// Account represents a subscriber.
type Account struct {
	ID          string `db:"id" json:"id"`
	Email       string `db:"email" json:"email"`
	DisplayName string `db:"display_name" json:"display_name"`
	Tier        Tier   `db:"tier" json:"tier"`
	// CredentialHash is the PHC-encoded password hash. Owned by the
	// authenticator; never serialized.
	CredentialHash string `db:"credential_hash" json:"-"`
	// Disabled marks a soft-disabled account. Accounts are never hard-deleted
	// so usage history stays intact.
	Disabled bool `db:"disabled" json:"-"`
	// FeatureOverrides are per-account promotional unlocks, tracked separately
	// from the tier's base feature set and loaded together with the account.
	FeatureOverrides []Feature `db:"-" json:"feature_overrides,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
