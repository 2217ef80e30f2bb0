package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

func newTestQuotaService(store *repository.MemoryStore, cfg *config.Config) *quotaService {
	return NewQuotaService(store, NewPlanCatalog(cfg), nil, "account-events", zerolog.Nop()).(*quotaService)
}

func freeAccount(id string) *model.Account {
	return &model.Account{ID: id, Email: id + "@example.com", Tier: model.TierFree}
}

func TestCheckAndConsumeWithinLimit(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)
	account := freeAccount("acc-1")
	ctx := context.Background()

	decision, err := quota.CheckAndConsume(ctx, account, 4)
	if err != nil {
		t.Fatalf("CheckAndConsume returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected call within limit to be allowed")
	}
	if decision.Consumed != 4 {
		t.Fatalf("consumed = %d, want 4", decision.Consumed)
	}
	if decision.Remaining.Unlimited || decision.Remaining.Limit != 6 {
		t.Fatalf("remaining = %+v, want 6", decision.Remaining)
	}
}

func TestCheckAndConsumeDenialLeavesCounterUntouched(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)
	account := freeAccount("acc-1")
	ctx := context.Background()

	if _, err := quota.CheckAndConsume(ctx, account, 8); err != nil {
		t.Fatalf("CheckAndConsume returned error: %v", err)
	}

	// 8 consumed of 10: asking for 3 must be denied without consuming.
	decision, err := quota.CheckAndConsume(ctx, account, 3)
	if err != nil {
		t.Fatalf("denied CheckAndConsume returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected over-limit call to be denied")
	}
	if decision.Consumed != 8 {
		t.Fatalf("denial must not consume: consumed = %d, want 8", decision.Consumed)
	}
	if decision.Remaining.Limit != 2 {
		t.Fatalf("remaining = %d, want 2", decision.Remaining.Limit)
	}

	// The remaining 2 units are still spendable.
	decision, err = quota.CheckAndConsume(ctx, account, 2)
	if err != nil {
		t.Fatalf("CheckAndConsume returned error: %v", err)
	}
	if !decision.Allowed || decision.Consumed != 10 || decision.Remaining.Limit != 0 {
		t.Fatalf("expected exact fill to be allowed with 0 remaining, got %+v", decision)
	}
}

func TestCheckAndConsumeUnlimitedTier(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)
	account := &model.Account{ID: "acc-ent", Tier: model.TierEnterprise}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := quota.CheckAndConsume(ctx, account, 1_000_000)
		if err != nil {
			t.Fatalf("CheckAndConsume returned error: %v", err)
		}
		if !decision.Allowed {
			t.Fatal("unlimited tier must always be allowed")
		}
		if !decision.Remaining.Unlimited {
			t.Fatalf("remaining must stay unlimited, got %+v", decision.Remaining)
		}
	}
	// Consumption is still recorded for reporting.
	decision, err := quota.Peek(ctx, account)
	if err != nil {
		t.Fatalf("Peek returned error: %v", err)
	}
	if decision.Consumed != 3_000_000 {
		t.Fatalf("consumed = %d, want 3000000", decision.Consumed)
	}
}

func TestPeekIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)
	account := freeAccount("acc-1")
	ctx := context.Background()

	if _, err := quota.CheckAndConsume(ctx, account, 7); err != nil {
		t.Fatalf("CheckAndConsume returned error: %v", err)
	}

	for i := 0; i < 5; i++ {
		decision, err := quota.Peek(ctx, account)
		if err != nil {
			t.Fatalf("Peek returned error: %v", err)
		}
		if decision.Consumed != 7 || decision.Remaining.Limit != 3 {
			t.Fatalf("Peek #%d changed state: %+v", i, decision)
		}
	}
}

func TestCheckAndConsumeZeroUnitsIsAllowedNoOp(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)
	account := freeAccount("acc-1")
	ctx := context.Background()

	if _, err := quota.CheckAndConsume(ctx, account, 10); err != nil {
		t.Fatalf("CheckAndConsume returned error: %v", err)
	}

	// Zero units always fit, so the no-op is allowed even on a spent window,
	// and nothing is consumed.
	decision, err := quota.CheckAndConsume(ctx, account, 0)
	if err != nil {
		t.Fatalf("zero-unit CheckAndConsume returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("zero units must always be allowed")
	}
	if decision.Consumed != 10 {
		t.Fatalf("zero units must not consume: consumed = %d, want 10", decision.Consumed)
	}
	if decision.Remaining.Limit != 0 {
		t.Fatalf("remaining = %d, want 0", decision.Remaining.Limit)
	}
}

func TestCheckAndConsumeNegativeUnits(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)

	if _, err := quota.CheckAndConsume(context.Background(), freeAccount("acc-1"), -1); !errors.Is(err, ErrInvalidUnits) {
		t.Fatalf("expected ErrInvalidUnits, got %v", err)
	}
}

func TestWindowRolloverResetsBudgetAndKeepsHistory(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)
	account := freeAccount("acc-1")
	ctx := context.Background()

	january := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	quota.now = func() time.Time { return january }

	if _, err := quota.CheckAndConsume(ctx, account, 10); err != nil {
		t.Fatalf("CheckAndConsume returned error: %v", err)
	}
	denied, err := quota.CheckAndConsume(ctx, account, 1)
	if err != nil {
		t.Fatalf("CheckAndConsume returned error: %v", err)
	}
	if denied.Allowed {
		t.Fatal("January window should be spent")
	}
	wantReset := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !denied.ResetAt.Equal(wantReset) {
		t.Fatalf("ResetAt = %v, want %v", denied.ResetAt, wantReset)
	}

	// Cross into February: full budget again.
	quota.now = func() time.Time { return time.Date(2026, time.February, 1, 0, 0, 1, 0, time.UTC) }
	decision, err := quota.CheckAndConsume(ctx, account, 1)
	if err != nil {
		t.Fatalf("CheckAndConsume after rollover returned error: %v", err)
	}
	if !decision.Allowed || decision.Consumed != 1 || decision.Remaining.Limit != 9 {
		t.Fatalf("expected fresh February window, got %+v", decision)
	}

	// January's counter survives as history.
	janStart := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	janConsumed, err := store.GetConsumed(ctx, account.ID, janStart)
	if err != nil {
		t.Fatalf("GetConsumed returned error: %v", err)
	}
	if janConsumed != 10 {
		t.Fatalf("January history = %d, want 10", janConsumed)
	}
}

// Many concurrent one-unit calls against a 10-unit window must admit exactly
// 10 of them: no double-spend, no lost updates.
func TestCheckAndConsumeConcurrentNoDoubleSpend(t *testing.T) {
	store := repository.NewMemoryStore()
	cfg := &config.Config{FreeMonthlyQuota: 10, ProMonthlyQuota: 100, TeamMonthlyQuota: 1000}
	quota := newTestQuotaService(store, cfg)
	account := freeAccount("acc-1")
	ctx := context.Background()

	const callers = 50
	var wg sync.WaitGroup
	results := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := quota.CheckAndConsume(ctx, account, 1)
			if err != nil {
				t.Errorf("CheckAndConsume returned error: %v", err)
				return
			}
			results <- decision.Allowed
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	if allowed != 10 {
		t.Fatalf("allowed = %d, want exactly 10", allowed)
	}

	final, err := quota.Peek(ctx, account)
	if err != nil {
		t.Fatalf("Peek returned error: %v", err)
	}
	if final.Consumed != 10 {
		t.Fatalf("final consumed = %d, want 10", final.Consumed)
	}
}
