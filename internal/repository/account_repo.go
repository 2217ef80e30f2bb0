package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository defines methods for accessing account records.
type AccountRepository interface {
	// CreateAccount inserts a new account. Returns ErrDuplicateEmail when the
	// email is already registered.
	CreateAccount(ctx context.Context, a *model.Account) error
	// GetAccountByEmail looks up an account by email, case-insensitively.
	// Returns (nil, nil) when no account matches.
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	// GetAccountByID returns (nil, nil) when no account matches.
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	UpdateTier(ctx context.Context, id string, tier model.Tier) error
	// DisableAccount soft-disables the account; rows are never deleted so
	// usage history stays intact.
	DisableAccount(ctx context.Context, id string) error
}

type accountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo creates a new AccountRepository.
func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) CreateAccount(ctx context.Context, a *model.Account) error {
	const q = `
        INSERT INTO accounts (id, email, display_name, tier, credential_hash, created_at, updated_at)
        VALUES ($1, lower($2), $3, $4, $5, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, a.ID, a.Email, a.DisplayName, a.Tier, a.CredentialHash).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("creating account %s: %w", a.ID, wrapUnavailable(err))
	}
	return nil
}

func (r *accountRepo) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	const q = `
        SELECT id, email, display_name, tier, credential_hash, disabled, created_at, updated_at
        FROM accounts
        WHERE email = lower($1)
    `
	return r.scanAccount(ctx, q, email)
}

func (r *accountRepo) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	const q = `
        SELECT id, email, display_name, tier, credential_hash, disabled, created_at, updated_at
        FROM accounts
        WHERE id = $1
    `
	return r.scanAccount(ctx, q, id)
}

func (r *accountRepo) scanAccount(ctx context.Context, q, arg string) (*model.Account, error) {
	var a model.Account
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&a.ID,
		&a.Email,
		&a.DisplayName,
		&a.Tier,
		&a.CredentialHash,
		&a.Disabled,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching account: %w", wrapUnavailable(err))
	}

	// Feature overrides are loaded together with the account so gate checks
	// stay in-memory on the request path.
	const overridesQ = `SELECT feature FROM feature_overrides WHERE account_id = $1 ORDER BY feature`
	rows, err := r.pool.Query(ctx, overridesQ, a.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching feature overrides for account %s: %w", a.ID, wrapUnavailable(err))
	}
	defer rows.Close()
	for rows.Next() {
		var f model.Feature
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning feature override for account %s: %w", a.ID, err)
		}
		a.FeatureOverrides = append(a.FeatureOverrides, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading feature overrides for account %s: %w", a.ID, wrapUnavailable(err))
	}
	return &a, nil
}

func (r *accountRepo) UpdateTier(ctx context.Context, id string, tier model.Tier) error {
	const q = `UPDATE accounts SET tier = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id, tier); err != nil {
		return fmt.Errorf("updating tier for account %s: %w", id, wrapUnavailable(err))
	}
	return nil
}

func (r *accountRepo) DisableAccount(ctx context.Context, id string) error {
	const q = `UPDATE accounts SET disabled = TRUE, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("disabling account %s: %w", id, wrapUnavailable(err))
	}
	return nil
}

// wrapUnavailable tags timeouts and cancelled storage calls as retryable so
// raw driver errors never decide the response status.
func wrapUnavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
