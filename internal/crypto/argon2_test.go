package crypto

import (
	"context"
	"strings"
	"testing"
)

// testParams keep KDF cost low so the suite stays fast.
var testParams = &Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestHashAndVerifyPassword(t *testing.T) {
	h := NewArgon2Hasher(testParams)
	ctx := context.Background()

	encoded, err := h.HashPassword(ctx, "correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("expected PHC-format argon2id hash, got %q", encoded)
	}

	ok, err := h.VerifyPassword(ctx, "correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected correct password to verify")
	}

	ok, err = h.VerifyPassword(ctx, "wrong password", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	h := NewArgon2Hasher(testParams)
	ctx := context.Background()

	first, err := h.HashPassword(ctx, "same password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	second, err := h.HashPassword(ctx, "same password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected two hashes of the same password to differ")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	h := NewArgon2Hasher(testParams)
	for _, bad := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=8192,t=1,p=1$onlyfiveparts",
		"$argon2id$v=999$m=8192,t=1,p=1$c2FsdA$aGFzaA",
	} {
		if _, err := h.VerifyPassword(context.Background(), "pw", bad); err == nil {
			t.Fatalf("expected error for malformed hash %q", bad)
		}
	}
}

func TestVerifyPasswordOldParams(t *testing.T) {
	// A hash minted with different cost factors must stay verifiable because
	// the PHC string carries its own params.
	old := NewArgon2Hasher(&Params{Memory: 4 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	ctx := context.Background()

	encoded, err := old.HashPassword(ctx, "legacy password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	current := NewArgon2Hasher(testParams)
	ok, err := current.VerifyPassword(ctx, "legacy password", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected hash with older params to verify under current hasher")
	}
}
