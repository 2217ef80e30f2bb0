package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidUnits is returned for negative unit counts.
	ErrInvalidUnits = errors.New("units must not be negative")
	// ErrQuotaExhausted is returned by billable operations when the window's
	// budget is spent. Callers can back off until the decision's ResetAt.
	ErrQuotaExhausted = errors.New("quota exhausted")
)

// QuotaExhaustedError carries the window reset time with ErrQuotaExhausted so
// the boundary can tell callers when to retry.
type QuotaExhaustedError struct {
	ResetAt time.Time
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("quota exhausted until %s", e.ResetAt.Format(time.RFC3339))
}

func (e *QuotaExhaustedError) Unwrap() error { return ErrQuotaExhausted }

// QuotaService answers whether a billable call is allowed and tracks
// consumption per account window.
type QuotaService interface {
	// CheckAndConsume atomically checks the current window and applies units.
	// A denied call leaves the counter untouched. units == 0 is a no-op that
	// always succeeds; negative units return ErrInvalidUnits.
	CheckAndConsume(ctx context.Context, account *model.Account, units int64) (*model.QuotaDecision, error)
	// Peek returns the same decision shape without consuming budget.
	// Idempotent: observing state never mutates it.
	Peek(ctx context.Context, account *model.Account) (*model.QuotaDecision, error)
}

type quotaService struct {
	usage     repository.UsageRepository
	catalog   PlanCatalog
	publisher pubsub.Publisher
	topic     string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewQuotaService creates a new QuotaService with a scoped logger.
func NewQuotaService(
	usage repository.UsageRepository,
	catalog PlanCatalog,
	publisher pubsub.Publisher,
	topic string,
	logger zerolog.Logger,
) QuotaService {
	return &quotaService{
		usage:     usage,
		catalog:   catalog,
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("service", "QuotaService").Logger(),
		now:       time.Now,
	}
}

func (s *quotaService) CheckAndConsume(ctx context.Context, account *model.Account, units int64) (*model.QuotaDecision, error) {
	if units < 0 {
		return nil, ErrInvalidUnits
	}
	plan, windowStart, resetAt, err := s.currentWindow(account)
	if err != nil {
		return nil, err
	}
	if units == 0 {
		// Zero units always fit, so the no-op is allowed even on a spent
		// window; nothing is consumed either way.
		consumed, err := s.usage.GetConsumed(ctx, account.ID, windowStart)
		if err != nil {
			s.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to read usage counter")
			return nil, err
		}
		return decisionFor(plan, consumed, resetAt, true), nil
	}

	consumed, err := s.usage.ConsumeInWindow(ctx, account.ID, windowStart, units, plan.Quota)
	if err != nil {
		if errors.Is(err, repository.ErrLimitReached) {
			decision := decisionFor(plan, consumed, resetAt, false)
			s.publishExhausted(ctx, account, resetAt)
			return decision, nil
		}
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to consume quota")
		return nil, err
	}
	return decisionFor(plan, consumed, resetAt, true), nil
}

func (s *quotaService) Peek(ctx context.Context, account *model.Account) (*model.QuotaDecision, error) {
	plan, windowStart, resetAt, err := s.currentWindow(account)
	if err != nil {
		return nil, err
	}
	return s.peekWindow(ctx, account, plan, windowStart, resetAt)
}

func (s *quotaService) peekWindow(ctx context.Context, account *model.Account, plan *model.Plan, windowStart, resetAt time.Time) (*model.QuotaDecision, error) {
	consumed, err := s.usage.GetConsumed(ctx, account.ID, windowStart)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to read usage counter")
		return nil, err
	}
	allowed := plan.Quota.Unlimited || consumed < plan.Quota.Limit
	return decisionFor(plan, consumed, resetAt, allowed), nil
}

// currentWindow resolves the account's plan and the window containing now.
// Rollover is implicit: a new window start addresses a fresh counter, and the
// previous window's row is retained as history.
func (s *quotaService) currentWindow(account *model.Account) (*model.Plan, time.Time, time.Time, error) {
	plan, err := s.catalog.Lookup(account.Tier)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Str("tier", string(account.Tier)).
			Msg("Account carries a tier outside the catalog")
		return nil, time.Time{}, time.Time{}, fmt.Errorf("resolving plan for account %s: %w", account.ID, err)
	}
	windowStart := plan.Window.Start(s.now())
	return plan, windowStart, plan.Window.Next(windowStart), nil
}

func decisionFor(plan *model.Plan, consumed int64, resetAt time.Time, allowed bool) *model.QuotaDecision {
	remaining := model.UnlimitedQuota()
	if !plan.Quota.Unlimited {
		left := plan.Quota.Limit - consumed
		if left < 0 {
			left = 0
		}
		remaining = model.QuotaOf(left)
	}
	return &model.QuotaDecision{
		Allowed:   allowed,
		Quota:     plan.Quota,
		Window:    plan.Window,
		Remaining: remaining,
		Consumed:  consumed,
		ResetAt:   resetAt,
	}
}

func (s *quotaService) publishExhausted(ctx context.Context, account *model.Account, resetAt time.Time) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"type":       "quota.exhausted",
		"account_id": account.ID,
		"tier":       string(account.Tier),
		"reset_at":   resetAt.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("account_id", account.ID).Msg("Failed to publish quota event")
	}
}
