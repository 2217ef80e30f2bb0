package dto

import "time"

// QuotaDTO describes a plan quota. Limit is omitted for unlimited quotas.
type QuotaDTO struct {
	Limit     *int64 `json:"limit,omitempty"`
	Unlimited bool   `json:"unlimited"`
	Window    string `json:"window"`
}

// UsageDTO reports consumption in the current quota window
type UsageDTO struct {
	Consumed  int64      `json:"consumed"`
	Remaining *int64     `json:"remaining,omitempty"`
	Unlimited bool       `json:"unlimited"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// PlanResponseDTO is returned for the authenticated account's plan
type PlanResponseDTO struct {
	Tier         string   `json:"tier"`
	Features     []string `json:"features"`
	Quota        QuotaDTO `json:"quota"`
	CurrentUsage UsageDTO `json:"current_usage"`
}

// ProfileResponseDTO is returned for the authenticated account's profile.
// Plan carries the tier's base plan; Capabilities is the effective set
// including overrides, which can be wider than the plan's features.
type ProfileResponseDTO struct {
	Account      AccountDTO      `json:"account"`
	Plan         PlanResponseDTO `json:"plan"`
	Capabilities []string        `json:"capabilities"`
	Usage        UsageDTO        `json:"usage"`
}
