package handler

import (
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"
)

// AccountHandler serves the authenticated account's profile and plan
type AccountHandler struct {
	catalog        service.PlanCatalog
	featureService service.FeatureService
	quotaService   service.QuotaService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(catalog service.PlanCatalog, featureService service.FeatureService, quotaService service.QuotaService) *AccountHandler {
	return &AccountHandler{catalog: catalog, featureService: featureService, quotaService: quotaService}
}

// RegisterRoutes mounts account routes behind the session middleware
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/account/profile", authMw(http.HandlerFunc(h.profile)))
	mux.Handle("/account/plan", authMw(http.HandlerFunc(h.plan)))
}

// profile godoc
// @Summary Account profile
// @Description Returns the account, its plan, its effective capabilities, and current window usage. Read-only: fetching the profile never consumes quota.
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ProfileResponseDTO
// @Failure 401 {object} handler.errorBody "Invalid or expired session"
// @Router /account/profile [get]
func (h *AccountHandler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	account, ok := accountFromContext(r)
	if !ok {
		writeErrorKind(w, http.StatusUnauthorized, kindInvalidSession, "no account in request context")
		return
	}

	plan, err := h.catalog.Lookup(account.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	capabilities, err := h.featureService.Capabilities(account)
	if err != nil {
		writeError(w, err)
		return
	}
	decision, err := h.quotaService.Peek(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileResponseDTO{
		Account:      toAccountDTO(account),
		Plan:         toPlanDTO(plan, decision),
		Capabilities: featureNames(capabilities),
		Usage:        toUsageDTO(decision),
	})
}

// plan godoc
// @Summary Account plan
// @Description Returns the plan the account's tier maps to: base feature set, quota, and the current window's usage.
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.PlanResponseDTO
// @Failure 401 {object} handler.errorBody "Invalid or expired session"
// @Router /account/plan [get]
func (h *AccountHandler) plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	account, ok := accountFromContext(r)
	if !ok {
		writeErrorKind(w, http.StatusUnauthorized, kindInvalidSession, "no account in request context")
		return
	}

	plan, err := h.catalog.Lookup(account.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	decision, err := h.quotaService.Peek(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan, decision))
}

func accountFromContext(r *http.Request) (*model.Account, bool) {
	account, ok := r.Context().Value(middleware.AccountContextKey).(*model.Account)
	return account, ok && account != nil
}

func featureNames(features []model.Feature) []string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return names
}

func toPlanDTO(plan *model.Plan, usage *model.QuotaDecision) dto.PlanResponseDTO {
	return dto.PlanResponseDTO{
		Tier:         string(plan.Tier),
		Features:     featureNames(plan.Features),
		Quota:        toQuotaDTO(plan.Quota, plan.Window),
		CurrentUsage: toUsageDTO(usage),
	}
}

func toQuotaDTO(q model.Quota, w model.Window) dto.QuotaDTO {
	out := dto.QuotaDTO{Unlimited: q.Unlimited, Window: string(w)}
	if !q.Unlimited {
		limit := q.Limit
		out.Limit = &limit
	}
	return out
}

func toUsageDTO(d *model.QuotaDecision) dto.UsageDTO {
	out := dto.UsageDTO{
		Consumed:  d.Consumed,
		Unlimited: d.Quota.Unlimited,
	}
	if !d.Quota.Unlimited {
		remaining := d.Remaining.Limit
		out.Remaining = &remaining
		resetAt := d.ResetAt
		out.ResetAt = &resetAt
	}
	return out
}
