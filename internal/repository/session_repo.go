package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository stores opaque-session records keyed by token hash.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	// GetSessionByTokenHash returns (nil, nil) when no session matches.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	// DeleteSessionByTokenHash is idempotent; deleting an unknown session is
	// not an error.
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
}

type sessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo creates a new SessionRepository.
func NewSessionRepo(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) CreateSession(ctx context.Context, s *model.Session) error {
	const q = `
        INSERT INTO sessions (token_hash, account_id, issued_at, expires_at)
        VALUES ($1, $2, $3, $4)
    `
	if _, err := r.pool.Exec(ctx, q, s.TokenHash, s.AccountID, s.IssuedAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("creating session for account %s: %w", s.AccountID, wrapUnavailable(err))
	}
	return nil
}

func (r *sessionRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	const q = `
        SELECT token_hash, account_id, issued_at, expires_at
        FROM sessions
        WHERE token_hash = $1
    `
	var s model.Session
	err := r.pool.QueryRow(ctx, q, tokenHash).Scan(&s.TokenHash, &s.AccountID, &s.IssuedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching session: %w", wrapUnavailable(err))
	}
	return &s, nil
}

func (r *sessionRepo) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	const q = `DELETE FROM sessions WHERE token_hash = $1`
	if _, err := r.pool.Exec(ctx, q, tokenHash); err != nil {
		return fmt.Errorf("deleting session: %w", wrapUnavailable(err))
	}
	return nil
}
