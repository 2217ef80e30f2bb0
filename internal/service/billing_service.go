package service

import (
	"context"
	"errors"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// ErrUnknownEventType is returned for a billing event type this service does
// not handle. Terminal: retrying the same event can never succeed.
var ErrUnknownEventType = errors.New("unknown billing event type")

// BillingEvent is the normalized payload of a billing collaborator message.
// Tier is set for plan.changed events, Feature for feature.granted and
// feature.revoked events.
type BillingEvent struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id"`
	Tier      string `json:"tier,omitempty"`
	Feature   string `json:"feature,omitempty"`
}

// BillingService applies billing events to account state. Both the Pub/Sub
// push endpoint and the retry worker funnel through it so an event means the
// same thing on either path.
type BillingService interface {
	Apply(ctx context.Context, event BillingEvent) error
}

type billingService struct {
	accounts AccountService
	features FeatureService
	logger   zerolog.Logger
}

// NewBillingService creates a new BillingService with a scoped logger.
func NewBillingService(accounts AccountService, features FeatureService, logger zerolog.Logger) BillingService {
	return &billingService{
		accounts: accounts,
		features: features,
		logger:   logger.With().Str("service", "BillingService").Logger(),
	}
}

func (s *billingService) Apply(ctx context.Context, event BillingEvent) error {
	switch event.Type {
	case "plan.changed":
		return s.accounts.ChangeTier(ctx, event.AccountID, model.Tier(event.Tier))
	case "feature.granted":
		return s.features.GrantOverride(ctx, event.AccountID, model.Feature(event.Feature))
	case "feature.revoked":
		return s.features.RevokeOverride(ctx, event.AccountID, model.Feature(event.Feature))
	case "account.disabled":
		return s.accounts.Disable(ctx, event.AccountID)
	default:
		return ErrUnknownEventType
	}
}

// TerminalEventError reports whether err can never be fixed by retrying the
// same event: unknown event types, unknown accounts, tiers outside the
// catalog.
func TerminalEventError(err error) bool {
	return errors.Is(err, ErrUnknownEventType) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrUnknownTier)
}
