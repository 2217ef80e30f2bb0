package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

// PubSubAuthMiddleware validates the OIDC token on a Pub/Sub push request.
// Billing events (plan changes, feature grants) arrive on this path, so only
// the configured push service account may deliver them.
// It bypasses authentication if isLocalDev is true.
func PubSubAuthMiddleware(isLocalDev bool, audience, expectedEmail string, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("middleware", "PubSubAuth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// For local development, bypass the authentication check.
			if isLocalDev {
				log.Debug().Msg("Skipping billing push authentication for local environment")
				next.ServeHTTP(w, r)
				return
			}

			if audience == "" || expectedEmail == "" {
				log.Error().Msg("Billing push auth configured without an audience or expected email; requests will be denied")
				http.Error(w, "Configuration error: audience or email not set", http.StatusInternalServerError)
				return
			}

			tokenString, ok := BearerToken(r)
			if !ok {
				log.Warn().Msg("Missing or malformed Authorization header on billing push request")
				http.Error(w, "Unauthorized: missing or malformed authorization header", http.StatusUnauthorized)
				return
			}

			payload, err := idtoken.Validate(context.Background(), tokenString, audience)
			if err != nil {
				log.Error().Err(err).Msg("Failed to validate billing push token")
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			email, ok := payload.Claims["email"].(string)
			if !ok || email == "" {
				log.Error().Msg("Email claim missing or invalid in billing push token")
				http.Error(w, "Forbidden: invalid email claim in token", http.StatusForbidden)
				return
			}

			if email != expectedEmail {
				log.Warn().
					Str("token_email", email).
					Str("expected_email", expectedEmail).
					Msg("Billing push token email does not match expected service account")
				http.Error(w, "Forbidden: token email does not match expected service account", http.StatusForbidden)
				return
			}

			log.Info().
				Str("email", email).
				Str("issuer", payload.Issuer).
				Msg("Authenticated billing push request")

			next.ServeHTTP(w, r)
		})
	}
}
