package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrAccountNotFound is returned when an account-admin operation targets an
// unknown account.
var ErrAccountNotFound = errors.New("account not found")

// AccountService applies account mutations driven by the external billing
// collaborator: tier changes and soft-disables.
type AccountService interface {
	// ChangeTier moves the account to the given tier. The tier is validated
	// against the catalog before the write.
	ChangeTier(ctx context.Context, accountID string, tier model.Tier) error
	// Disable soft-disables the account; usage history is retained.
	Disable(ctx context.Context, accountID string) error
}

type accountService struct {
	accounts  repository.AccountRepository
	catalog   PlanCatalog
	publisher pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewAccountService creates a new AccountService with a scoped logger.
func NewAccountService(accounts repository.AccountRepository, catalog PlanCatalog, publisher pubsub.Publisher, topic string, logger zerolog.Logger) AccountService {
	return &accountService{
		accounts:  accounts,
		catalog:   catalog,
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("service", "AccountService").Logger(),
	}
}

func (s *accountService) ChangeTier(ctx context.Context, accountID string, tier model.Tier) error {
	if _, err := s.catalog.Lookup(tier); err != nil {
		return err
	}
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to fetch account for tier change")
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if account.Tier == tier {
		return nil
	}

	if err := s.accounts.UpdateTier(ctx, accountID, tier); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Str("tier", string(tier)).Msg("Failed to update tier")
		return err
	}
	s.logger.Info().Str("account_id", accountID).
		Str("from", string(account.Tier)).Str("to", string(tier)).Msg("Account tier changed")
	s.publishTierChanged(ctx, accountID, account.Tier, tier)
	return nil
}

func (s *accountService) Disable(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to fetch account for disable")
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if err := s.accounts.DisableAccount(ctx, accountID); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to disable account")
		return err
	}
	s.logger.Info().Str("account_id", accountID).Msg("Account disabled")
	return nil
}

func (s *accountService) publishTierChanged(ctx context.Context, accountID string, from, to model.Tier) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"type":        "plan.changed",
		"account_id":  accountID,
		"from":        string(from),
		"tier":        string(to),
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Failed to publish tier change event")
	}
}
