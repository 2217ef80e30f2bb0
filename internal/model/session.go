package model

import "time"

// Session is an opaque bearer token bound to an account. Only the SHA-256
// hash of the token is stored; the raw token exists solely on the wire.
type Session struct {
	TokenHash string    `db:"token_hash" json:"-"`
	AccountID string    `db:"account_id" json:"account_id"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the session has passed its fixed TTL at time now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
