package model

import "time"

// UsageCounter is the consumed-units record for one (account, window) pair.
// One row per window; rolled-over windows are kept for history.
type UsageCounter struct {
	AccountID   string    `db:"account_id" json:"account_id"`
	WindowStart time.Time `db:"window_start" json:"window_start"`
	Consumed    int64     `db:"consumed" json:"consumed"`
}

// QuotaDecision is the outcome of a quota check against the current window.
type QuotaDecision struct {
	Allowed bool `json:"allowed"`
	// Quota is the plan's per-window quota.
	Quota Quota `json:"quota"`
	// Window is the plan's counting period.
	Window Window `json:"window"`
	// Remaining is the budget left in the window after the call. For
	// unlimited plans it stays the unlimited state, never a finite number.
	Remaining Quota `json:"remaining"`
	// Consumed is the window's total after the call (unchanged on denial).
	Consumed int64 `json:"consumed"`
	// ResetAt is the start of the next window.
	ResetAt time.Time `json:"reset_at"`
}
