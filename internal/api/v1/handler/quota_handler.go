package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
)

// QuotaHandler serves quota checks and usage exports
type QuotaHandler struct {
	quotaService  service.QuotaService
	exportService service.ExportService
	validate      *validator.Validate
}

// NewQuotaHandler creates a new QuotaHandler
func NewQuotaHandler(quotaService service.QuotaService, exportService service.ExportService, validate *validator.Validate) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService, exportService: exportService, validate: validate}
}

// RegisterRoutes mounts quota routes behind the session middleware
func (h *QuotaHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/quota/check", authMw(http.HandlerFunc(h.check)))
	mux.Handle("/quota/export", authMw(http.HandlerFunc(h.export)))
}

// check godoc
// @Summary Check and consume quota
// @Description Atomically checks the current window and consumes the requested units. A denied check returns 200 with allowed=false and leaves the counter untouched; zero units peeks without consuming.
// @Tags quota
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.QuotaCheckRequestDTO true "Units to consume"
// @Success 200 {object} dto.QuotaCheckResponseDTO
// @Failure 400 {object} handler.errorBody "Missing or negative units"
// @Failure 401 {object} handler.errorBody "Invalid or expired session"
// @Router /quota/check [post]
func (h *QuotaHandler) check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	account, ok := accountFromContext(r)
	if !ok {
		writeErrorKind(w, http.StatusUnauthorized, kindInvalidSession, "no account in request context")
		return
	}
	var req dto.QuotaCheckRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidRequest, "validation failed: "+err.Error())
		return
	}

	decision, err := h.quotaService.CheckAndConsume(r.Context(), account, *req.Units)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuotaCheckDTO(decision))
}

// export godoc
// @Summary Export usage history
// @Description Writes the account's per-window usage counters to object storage as CSV and returns a short-lived download URL. Requires the usage_export feature and consumes one quota unit.
// @Tags quota
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ExportResponseDTO
// @Failure 401 {object} handler.errorBody "Invalid or expired session"
// @Failure 403 {object} handler.errorBody "Plan does not include usage_export"
// @Failure 429 {object} handler.errorBody "Quota exhausted"
// @Router /quota/export [get]
func (h *QuotaHandler) export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	account, ok := accountFromContext(r)
	if !ok {
		writeErrorKind(w, http.StatusUnauthorized, kindInvalidSession, "no account in request context")
		return
	}

	url, expiresAt, err := h.exportService.ExportUsage(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ExportResponseDTO{URL: url, ExpiresAt: expiresAt})
}

func toQuotaCheckDTO(d *model.QuotaDecision) dto.QuotaCheckResponseDTO {
	out := dto.QuotaCheckResponseDTO{
		Allowed:   d.Allowed,
		Consumed:  d.Consumed,
		Unlimited: d.Quota.Unlimited,
		Quota:     toQuotaDTO(d.Quota, d.Window),
	}
	if !d.Quota.Unlimited {
		remaining := d.Remaining.Limit
		out.Remaining = &remaining
		resetAt := d.ResetAt
		out.ResetAt = &resetAt
	}
	return out
}
