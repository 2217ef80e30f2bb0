package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const AccountContextKey = contextKey("account")

// AuthMiddleware resolves the opaque bearer session token into its account
// and stores the account in the request context, so downstream quota and
// feature checks never touch storage again for identity.
func AuthMiddleware(auth service.AuthService, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, dto.KindInvalidSession, "Authorization header missing or malformed")
				return
			}

			account, err := auth.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidSession) {
					logger.Error().Err(err).Msg("Failed to resolve session")
					writeAuthError(w, http.StatusInternalServerError, dto.KindInternal, "internal server error")
					return
				}
				writeAuthError(w, http.StatusUnauthorized, dto.KindInvalidSession, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError mirrors the handler-layer error envelope so rejected
// requests look the same whether the middleware or a handler refused them.
func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"kind": kind, "message": message},
	})
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
