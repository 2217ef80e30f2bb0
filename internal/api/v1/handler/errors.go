package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/repository"
	"app/internal/service"
)

// errorBody is the envelope every error response uses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string     `json:"kind"`
	Message string     `json:"message"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// Kind values live in the dto package so the middleware shares them.
const (
	kindInvalidRequest      = dto.KindInvalidRequest
	kindDuplicateEmail      = dto.KindDuplicateEmail
	kindInvalidCredentials  = dto.KindInvalidCredentials
	kindInvalidSession      = dto.KindInvalidSession
	kindFeatureNotAvailable = dto.KindFeatureNotAvailable
	kindQuotaExceeded       = dto.KindQuotaExceeded
	kindStorageUnavailable  = dto.KindStorageUnavailable
	kindInternal            = dto.KindInternal
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// writeError maps service and repository errors onto the error taxonomy.
// Anything unmapped is reported as an opaque internal error so storage
// details never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidUnits):
		writeErrorKind(w, http.StatusBadRequest, kindInvalidRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateEmail):
		writeErrorKind(w, http.StatusBadRequest, kindDuplicateEmail, "email is already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeErrorKind(w, http.StatusUnauthorized, kindInvalidCredentials, "invalid email or password")
	case errors.Is(err, service.ErrInvalidSession):
		writeErrorKind(w, http.StatusUnauthorized, kindInvalidSession, "invalid or expired session")
	case errors.Is(err, service.ErrFeatureNotAvailable):
		// Names the missing capability without exposing anything internal.
		writeErrorKind(w, http.StatusForbidden, kindFeatureNotAvailable, err.Error())
	case errors.Is(err, service.ErrQuotaExhausted):
		detail := errorDetail{Kind: kindQuotaExceeded, Message: "quota exhausted for the current window"}
		var exhausted *service.QuotaExhaustedError
		if errors.As(err, &exhausted) {
			resetAt := exhausted.ResetAt
			detail.ResetAt = &resetAt
		}
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: detail})
	case errors.Is(err, repository.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		writeErrorKind(w, http.StatusServiceUnavailable, kindStorageUnavailable, "storage is temporarily unavailable")
	default:
		writeErrorKind(w, http.StatusInternalServerError, kindInternal, "internal server error")
	}
}
