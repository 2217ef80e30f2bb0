package crypto

import "context"

// PasswordHasher is the contract for credential hashing. The authenticator
// depends on this interface, not on a specific KDF.
type PasswordHasher interface {
	HashPassword(ctx context.Context, password string) (string, error)
	VerifyPassword(ctx context.Context, password, encodedHash string) (bool, error)
}
