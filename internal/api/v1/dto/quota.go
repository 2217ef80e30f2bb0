package dto

import "time"

// QuotaCheckRequestDTO is used for incoming quota check-and-consume requests.
// Units is a pointer so a missing field is distinguishable from zero: zero
// units is a valid peek, a missing field is a client error.
type QuotaCheckRequestDTO struct {
	Units *int64 `json:"units" validate:"required"`
}

// QuotaCheckResponseDTO reports the outcome of a quota check
type QuotaCheckResponseDTO struct {
	Allowed   bool       `json:"allowed"`
	Consumed  int64      `json:"consumed"`
	Remaining *int64     `json:"remaining,omitempty"`
	Unlimited bool       `json:"unlimited"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Quota     QuotaDTO   `json:"quota"`
}

// ExportResponseDTO is returned after a usage export has been written to
// object storage
type ExportResponseDTO struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
