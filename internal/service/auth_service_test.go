package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"app/internal/crypto"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// testHasher uses low Argon2 cost factors so the suite stays fast.
func testHasher() crypto.PasswordHasher {
	return crypto.NewArgon2Hasher(&crypto.Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func newTestAuthService(t *testing.T, store *repository.MemoryStore) AuthService {
	t.Helper()
	svc, err := NewAuthService(store, store, testHasher(), nil, "account-events", 720*time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService returned error: %v", err)
	}
	return svc
}

func TestRegisterAndResolve(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	account, token, err := auth.Register(ctx, "Alice@Example.com", "s3cret-password", "Alice")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if account.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %q", account.Email)
	}
	if account.Tier != model.TierFree {
		t.Fatalf("new accounts must start on free, got %s", account.Tier)
	}
	if token == "" {
		t.Fatal("expected a session token from Register")
	}

	resolved, err := auth.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if resolved.ID != account.ID {
		t.Fatalf("Resolve returned account %s, want %s", resolved.ID, account.ID)
	}
}

func TestRegisterDuplicateEmailCaseInsensitive(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	if _, _, err := auth.Register(ctx, "bob@example.com", "password-one", "Bob"); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}
	_, _, err := auth.Register(ctx, "BOB@EXAMPLE.COM", "password-two", "Bobby")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	if _, _, err := auth.Register(ctx, "carol@example.com", "right-password", "Carol"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	// Wrong password and unknown email must yield the same error so callers
	// can't probe which addresses exist.
	_, _, wrongPw := auth.Login(ctx, "carol@example.com", "wrong-password")
	if !errors.Is(wrongPw, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPw)
	}
	_, _, unknown := auth.Login(ctx, "nobody@example.com", "right-password")
	if !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknown)
	}
}

func TestLoginIssuesFreshSession(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	_, registerToken, err := auth.Register(ctx, "dave@example.com", "dave-password", "Dave")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	account, loginToken, err := auth.Login(ctx, "dave@example.com", "dave-password")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if loginToken == registerToken {
		t.Fatal("expected login to mint a new token")
	}
	if _, err := auth.Resolve(ctx, loginToken); err != nil {
		t.Fatalf("Resolve of login token returned error: %v", err)
	}
	if account.Email != "dave@example.com" {
		t.Fatalf("unexpected account email %q", account.Email)
	}
}

func TestLogoutInvalidatesSessionAndIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	_, token, err := auth.Register(ctx, "erin@example.com", "erin-password", "Erin")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := auth.Logout(ctx, token); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, err := auth.Resolve(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession after logout, got %v", err)
	}
	// Logging out again (or with garbage) still succeeds.
	if err := auth.Logout(ctx, token); err != nil {
		t.Fatalf("second Logout returned error: %v", err)
	}
	if err := auth.Logout(ctx, "never-issued"); err != nil {
		t.Fatalf("Logout of unknown token returned error: %v", err)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	_, token, err := auth.Register(ctx, "frank@example.com", "frank-password", "Frank")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	// Jump past the TTL.
	auth.(*authService).now = func() time.Time {
		return time.Now().Add(721 * time.Hour)
	}
	if _, err := auth.Resolve(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for expired token, got %v", err)
	}
}

func TestDisabledAccountCannotLoginOrResolve(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	account, token, err := auth.Register(ctx, "grace@example.com", "grace-password", "Grace")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := store.DisableAccount(ctx, account.ID); err != nil {
		t.Fatalf("DisableAccount returned error: %v", err)
	}

	if _, _, err := auth.Login(ctx, "grace@example.com", "grace-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for disabled account, got %v", err)
	}
	if _, err := auth.Resolve(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for disabled account, got %v", err)
	}
}

func TestCredentialHashIsNotPlaintext(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := newTestAuthService(t, store)
	ctx := context.Background()

	account, _, err := auth.Register(ctx, "heidi@example.com", "heidi-password", "Heidi")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	stored, err := store.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID returned error: %v", err)
	}
	if stored.CredentialHash == "heidi-password" || stored.CredentialHash == "" {
		t.Fatal("credential hash must be a derived value, never the plaintext")
	}
}
