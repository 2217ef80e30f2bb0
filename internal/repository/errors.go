package repository

import "errors"

var (
	// ErrDuplicateEmail is returned when an account with the same email
	// (case-insensitive) already exists.
	ErrDuplicateEmail = errors.New("duplicate_email")

	// ErrLimitReached is returned by ConsumeInWindow when applying the
	// requested units would exceed the window's quota. The counter is left
	// unchanged.
	ErrLimitReached = errors.New("limit_reached")

	// ErrStorageUnavailable wraps storage timeouts and connectivity failures.
	// Callers may retry with backoff.
	ErrStorageUnavailable = errors.New("storage_unavailable")
)
