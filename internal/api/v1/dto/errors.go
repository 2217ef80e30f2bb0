package dto

// Error kinds are part of the wire contract: stable across releases so
// clients can branch on them. Messages are free-form and may change.
const (
	KindInvalidRequest      = "invalid_request"
	KindDuplicateEmail      = "duplicate_email"
	KindInvalidCredentials  = "invalid_credentials"
	KindInvalidSession      = "invalid_session"
	KindFeatureNotAvailable = "feature_not_available"
	KindQuotaExceeded       = "quota_exceeded"
	KindStorageUnavailable  = "storage_unavailable"
	KindInternal            = "internal"
)
