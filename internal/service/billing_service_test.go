package service

import (
	"context"
	"errors"
	"testing"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

func newTestBillingService(store *repository.MemoryStore) BillingService {
	catalog := NewPlanCatalog(testConfig())
	accounts := NewAccountService(store, catalog, nil, "account-events", zerolog.Nop())
	features := NewFeatureService(catalog, store, zerolog.Nop())
	return NewBillingService(accounts, features, zerolog.Nop())
}

func TestBillingApplyPlanChanged(t *testing.T) {
	store := repository.NewMemoryStore()
	billing := newTestBillingService(store)
	ctx := context.Background()

	account := &model.Account{ID: "acc-1", Email: "a@example.com", Tier: model.TierFree}
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}

	err := billing.Apply(ctx, BillingEvent{Type: "plan.changed", AccountID: "acc-1", Tier: "pro"})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	reloaded, _ := store.GetAccountByID(ctx, "acc-1")
	if reloaded.Tier != model.TierPro {
		t.Fatalf("tier = %s, want pro", reloaded.Tier)
	}
}

func TestBillingApplyFeatureGrantAndRevoke(t *testing.T) {
	store := repository.NewMemoryStore()
	billing := newTestBillingService(store)
	ctx := context.Background()

	account := &model.Account{ID: "acc-1", Email: "a@example.com", Tier: model.TierFree}
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}

	if err := billing.Apply(ctx, BillingEvent{Type: "feature.granted", AccountID: "acc-1", Feature: "sso"}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	overrides, _ := store.ListOverrides(ctx, "acc-1")
	if len(overrides) != 1 || overrides[0] != model.FeatureSSO {
		t.Fatalf("overrides = %v, want [sso]", overrides)
	}

	if err := billing.Apply(ctx, BillingEvent{Type: "feature.revoked", AccountID: "acc-1", Feature: "sso"}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	overrides, _ = store.ListOverrides(ctx, "acc-1")
	if len(overrides) != 0 {
		t.Fatalf("overrides = %v, want none", overrides)
	}
}

func TestBillingApplyTerminalErrors(t *testing.T) {
	store := repository.NewMemoryStore()
	billing := newTestBillingService(store)
	ctx := context.Background()

	err := billing.Apply(ctx, BillingEvent{Type: "plan.shredded", AccountID: "acc-1"})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
	if !TerminalEventError(err) {
		t.Fatal("unknown event type must be terminal")
	}

	err = billing.Apply(ctx, BillingEvent{Type: "account.disabled", AccountID: "missing"})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if !TerminalEventError(err) {
		t.Fatal("unknown account must be terminal")
	}

	err = billing.Apply(ctx, BillingEvent{Type: "plan.changed", AccountID: "acc-1", Tier: "platinum"})
	if !TerminalEventError(err) {
		t.Fatalf("unknown tier must be terminal, got %v", err)
	}

	if TerminalEventError(context.DeadlineExceeded) {
		t.Fatal("timeouts must stay retryable")
	}
}
