package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"app/internal/crypto"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidCredentials covers every login mismatch: wrong email and
	// wrong password return this same error so callers can't enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession covers unknown and expired tokens alike.
	ErrInvalidSession = errors.New("invalid session")
	// ErrDuplicateEmail is returned when registering an email that already
	// exists, compared case-insensitively.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidInput is returned for malformed register/login fields.
	ErrInvalidInput = errors.New("invalid input")
)

const sessionTokenBytes = 32

// AuthService validates credentials and manages opaque session tokens.
// Sessions use a fixed TTL from issue time; resolve never extends them, which
// keeps it read-only.
type AuthService interface {
	// Register creates an account at tier free and issues its first session.
	Register(ctx context.Context, email, password, displayName string) (*model.Account, string, error)
	// Login issues a new session. Any mismatch returns ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) (*model.Account, string, error)
	// Resolve maps a bearer token to its account. Read-only.
	Resolve(ctx context.Context, token string) (*model.Account, error)
	// Logout invalidates the session; idempotent.
	Logout(ctx context.Context, token string) error
}

type authService struct {
	accounts   repository.AccountRepository
	sessions   repository.SessionRepository
	hasher     crypto.PasswordHasher
	publisher  pubsub.Publisher
	topic      string
	sessionTTL time.Duration
	// decoyHash is verified against when the email is unknown, so both login
	// failure paths cost one KDF invocation.
	decoyHash string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService with a scoped logger.
func NewAuthService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	hasher crypto.PasswordHasher,
	publisher pubsub.Publisher,
	topic string,
	sessionTTL time.Duration,
	logger zerolog.Logger,
) (AuthService, error) {
	decoy, err := hasher.HashPassword(context.Background(), uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("preparing decoy hash: %w", err)
	}
	return &authService{
		accounts:   accounts,
		sessions:   sessions,
		hasher:     hasher,
		publisher:  publisher,
		topic:      topic,
		sessionTTL: sessionTTL,
		decoyHash:  decoy,
		logger:     logger.With().Str("service", "AuthService").Logger(),
		now:        time.Now,
	}, nil
}

func (s *authService) Register(ctx context.Context, email, password, displayName string) (*model.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", ErrInvalidInput
	}

	hash, err := s.hasher.HashPassword(ctx, password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	account := &model.Account{
		ID:             uuid.NewString(),
		Email:          email,
		DisplayName:    displayName,
		Tier:           model.TierFree,
		CredentialHash: hash,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", ErrDuplicateEmail
		}
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to create account")
		return nil, "", err
	}

	token, err := s.issueSession(ctx, account.ID)
	if err != nil {
		return nil, "", err
	}

	s.publishEvent(ctx, "account.registered", account.ID, string(account.Tier))
	return account, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*model.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch account for login")
		return nil, "", err
	}
	if account == nil || account.Disabled {
		// Burn a verify anyway to keep unknown-email timing close to the
		// wrong-password path.
		_, _ = s.hasher.VerifyPassword(ctx, password, s.decoyHash)
		return nil, "", ErrInvalidCredentials
	}

	ok, err := s.hasher.VerifyPassword(ctx, password, account.CredentialHash)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to verify password")
		return nil, "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueSession(ctx, account.ID)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

func (s *authService) Resolve(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch session")
		return nil, err
	}
	if session == nil || session.Expired(s.now().UTC()) {
		return nil, ErrInvalidSession
	}

	account, err := s.accounts.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", session.AccountID).Msg("Failed to fetch account for session")
		return nil, err
	}
	if account == nil || account.Disabled {
		return nil, ErrInvalidSession
	}
	return account, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSessionByTokenHash(ctx, hashToken(token)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete session")
		return err
	}
	return nil
}

// issueSession mints an unguessable random token and stores only its hash.
func (s *authService) issueSession(ctx context.Context, accountID string) (string, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	issuedAt := s.now().UTC()
	session := &model.Session{
		TokenHash: hashToken(token),
		AccountID: accountID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.sessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to create session")
		return "", err
	}
	return token, nil
}

func (s *authService) publishEvent(ctx context.Context, eventType, accountID, tier string) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"type":        eventType,
		"account_id":  accountID,
		"tier":        tier,
		"occurred_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish account event")
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
