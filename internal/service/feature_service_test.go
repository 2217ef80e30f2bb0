package service

import (
	"context"
	"testing"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

func TestCapabilitiesUnionWithOverrides(t *testing.T) {
	store := repository.NewMemoryStore()
	features := NewFeatureService(NewPlanCatalog(testConfig()), store, zerolog.Nop())
	ctx := context.Background()

	account := &model.Account{ID: "acc-1", Email: "acc-1@example.com", Tier: model.TierFree}
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}

	base, err := features.Capabilities(account)
	if err != nil {
		t.Fatalf("Capabilities returned error: %v", err)
	}
	if len(base) != 1 || base[0] != model.FeatureAPIAccess {
		t.Fatalf("free capabilities = %v, want [api_access]", base)
	}

	// Grant a promotional unlock above the tier's base set.
	if err := features.GrantOverride(ctx, account.ID, model.FeatureUsageExport); err != nil {
		t.Fatalf("GrantOverride returned error: %v", err)
	}
	// Granting a feature the tier already has must not duplicate it.
	if err := features.GrantOverride(ctx, account.ID, model.FeatureAPIAccess); err != nil {
		t.Fatalf("GrantOverride returned error: %v", err)
	}

	reloaded, err := store.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID returned error: %v", err)
	}

	caps, err := features.Capabilities(reloaded)
	if err != nil {
		t.Fatalf("Capabilities returned error: %v", err)
	}
	if len(caps) != 2 {
		t.Fatalf("capabilities = %v, want exactly [api_access usage_export]", caps)
	}
	if caps[0] != model.FeatureAPIAccess || caps[1] != model.FeatureUsageExport {
		t.Fatalf("capabilities = %v, want sorted [api_access usage_export]", caps)
	}
}

func TestHasFeatureBaseAndOverride(t *testing.T) {
	store := repository.NewMemoryStore()
	features := NewFeatureService(NewPlanCatalog(testConfig()), store, zerolog.Nop())

	account := &model.Account{ID: "acc-1", Tier: model.TierFree}
	ok, err := features.HasFeature(account, model.FeatureAPIAccess)
	if err != nil || !ok {
		t.Fatalf("expected free tier to have api_access, got ok=%v err=%v", ok, err)
	}
	ok, err = features.HasFeature(account, model.FeatureSSO)
	if err != nil || ok {
		t.Fatalf("expected free tier to lack sso, got ok=%v err=%v", ok, err)
	}

	account.FeatureOverrides = []model.Feature{model.FeatureSSO}
	ok, err = features.HasFeature(account, model.FeatureSSO)
	if err != nil || !ok {
		t.Fatalf("expected override to grant sso, got ok=%v err=%v", ok, err)
	}
}

func TestRevokeOverrideNeverTouchesBaseFeatures(t *testing.T) {
	store := repository.NewMemoryStore()
	features := NewFeatureService(NewPlanCatalog(testConfig()), store, zerolog.Nop())
	ctx := context.Background()

	account := &model.Account{ID: "acc-1", Tier: model.TierFree}
	if err := features.GrantOverride(ctx, account.ID, model.FeatureSSO); err != nil {
		t.Fatalf("GrantOverride returned error: %v", err)
	}
	if err := features.RevokeOverride(ctx, account.ID, model.FeatureSSO); err != nil {
		t.Fatalf("RevokeOverride returned error: %v", err)
	}
	// Revoking a base feature is a no-op on capabilities.
	if err := features.RevokeOverride(ctx, account.ID, model.FeatureAPIAccess); err != nil {
		t.Fatalf("RevokeOverride returned error: %v", err)
	}

	overrides, err := store.ListOverrides(ctx, account.ID)
	if err != nil {
		t.Fatalf("ListOverrides returned error: %v", err)
	}
	if len(overrides) != 0 {
		t.Fatalf("expected no overrides left, got %v", overrides)
	}
	ok, err := features.HasFeature(account, model.FeatureAPIAccess)
	if err != nil || !ok {
		t.Fatalf("base feature must survive revoke, got ok=%v err=%v", ok, err)
	}
}

func TestCapabilitiesUnknownTier(t *testing.T) {
	store := repository.NewMemoryStore()
	features := NewFeatureService(NewPlanCatalog(testConfig()), store, zerolog.Nop())

	if _, err := features.Capabilities(&model.Account{ID: "acc-1", Tier: "platinum"}); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}
