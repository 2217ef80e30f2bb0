package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository tracks consumed units per (account, window).
type UsageRepository interface {
	// ConsumeInWindow atomically checks and applies units against the counter
	// for the given window, lazily materializing it at zero. It returns the
	// window's consumed total after the call. When applying the units would
	// exceed a finite limit it returns the unchanged total and ErrLimitReached
	// without mutating the counter. Unlimited quotas always apply.
	ConsumeInWindow(ctx context.Context, accountID string, windowStart time.Time, units int64, limit model.Quota) (int64, error)
	// GetConsumed returns the consumed total for the window, 0 when no
	// counter exists yet. Read-only.
	GetConsumed(ctx context.Context, accountID string, windowStart time.Time) (int64, error)
	// ListCounters returns all retained counters for the account, oldest
	// window first.
	ListCounters(ctx context.Context, accountID string) ([]model.UsageCounter, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

// ConsumeInWindow serializes the check-then-increment per counter row: the
// FOR UPDATE row lock (with Serializable isolation backstopping the
// not-yet-materialized window) guarantees two concurrent calls can never both
// spend the last unit of budget. A denied call rolls back untouched.
//
// Two concurrent first consumptions of a fresh window find no row to lock, so
// Serializable isolation aborts one of them with a serialization failure. One
// retry resolves it against the row the winner materialized; a conflict that
// survives the retry is surfaced as ErrStorageUnavailable so callers know to
// back off.
func (r *usageRepo) ConsumeInWindow(ctx context.Context, accountID string, windowStart time.Time, units int64, limit model.Quota) (int64, error) {
	total, err := r.consumeOnce(ctx, accountID, windowStart, units, limit)
	if isSerializationFailure(err) {
		total, err = r.consumeOnce(ctx, accountID, windowStart, units, limit)
		if isSerializationFailure(err) {
			return 0, fmt.Errorf("quota transaction for account %s kept conflicting: %w", accountID, ErrStorageUnavailable)
		}
	}
	return total, err
}

func (r *usageRepo) consumeOnce(ctx context.Context, accountID string, windowStart time.Time, units int64, limit model.Quota) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for quota check: %w", wrapUnavailable(err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var consumed int64
	const selectQ = `
        SELECT consumed
        FROM usage_counters
        WHERE account_id = $1 AND window_start = $2
        FOR UPDATE
    `
	err = tx.QueryRow(ctx, selectQ, accountID, windowStart).Scan(&consumed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("reading usage counter for account %s: %w", accountID, wrapUnavailable(err))
	}

	total := model.SaturatingAdd(consumed, units)
	if !limit.Unlimited && total > limit.Limit {
		return consumed, ErrLimitReached
	}

	const upsertQ = `
        INSERT INTO usage_counters (account_id, window_start, consumed)
        VALUES ($1, $2, $3)
        ON CONFLICT (account_id, window_start) DO UPDATE SET consumed = EXCLUDED.consumed
    `
	if _, err := tx.Exec(ctx, upsertQ, accountID, windowStart, total); err != nil {
		return 0, fmt.Errorf("recording usage for account %s: %w", accountID, wrapUnavailable(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing usage for account %s: %w", accountID, wrapUnavailable(err))
	}
	return total, nil
}

// isSerializationFailure reports whether err is a Postgres serialization
// failure (SQLSTATE 40001), the abort Serializable transactions take when
// their read sets conflict.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (r *usageRepo) GetConsumed(ctx context.Context, accountID string, windowStart time.Time) (int64, error) {
	const q = `
        SELECT consumed
        FROM usage_counters
        WHERE account_id = $1 AND window_start = $2
    `
	var consumed int64
	err := r.pool.QueryRow(ctx, q, accountID, windowStart).Scan(&consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading usage counter for account %s: %w", accountID, wrapUnavailable(err))
	}
	return consumed, nil
}

func (r *usageRepo) ListCounters(ctx context.Context, accountID string) ([]model.UsageCounter, error) {
	const q = `
        SELECT account_id, window_start, consumed
        FROM usage_counters
        WHERE account_id = $1
        ORDER BY window_start
    `
	rows, err := r.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing usage counters for account %s: %w", accountID, wrapUnavailable(err))
	}
	defer rows.Close()

	var counters []model.UsageCounter
	for rows.Next() {
		var c model.UsageCounter
		if err := rows.Scan(&c.AccountID, &c.WindowStart, &c.Consumed); err != nil {
			return nil, fmt.Errorf("scanning usage counter for account %s: %w", accountID, err)
		}
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading usage counters for account %s: %w", accountID, wrapUnavailable(err))
	}
	return counters, nil
}
