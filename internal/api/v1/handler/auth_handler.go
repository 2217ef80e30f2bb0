package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
)

// AuthHandler handles registration, login and logout endpoints
type AuthHandler struct {
	authService service.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{authService: authService, validate: validate}
}

// RegisterRoutes mounts auth routes. None of them sit behind the session
// middleware: register and login mint sessions, and logout reads the bearer
// token itself so an expired token still logs out cleanly.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/register", h.register)
	mux.HandleFunc("/auth/login", h.login)
	mux.HandleFunc("/auth/logout", h.logout)
}

// register godoc
// @Summary Register a new account
// @Description Creates an account on the free tier and issues its first session token.
// @Tags auth
// @Accept json
// @Produce json
// @Param account body dto.RegisterRequestDTO true "Registration request"
// @Success 201 {object} dto.AuthResponseDTO
// @Failure 400 {object} handler.errorBody "Invalid payload or duplicate email"
// @Router /auth/register [post]
func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dto.RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidRequest, "validation failed: "+err.Error())
		return
	}

	account, token, err := h.authService.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.AuthResponseDTO{
		Token:   token,
		Account: toAccountDTO(account),
	})
}

// login godoc
// @Summary Log in
// @Description Verifies credentials and issues a fresh session token.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body dto.LoginRequestDTO true "Login request"
// @Success 200 {object} dto.AuthResponseDTO
// @Failure 401 {object} handler.errorBody "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dto.LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidRequest, "validation failed: "+err.Error())
		return
	}

	account, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuthResponseDTO{
		Token:   token,
		Account: toAccountDTO(account),
	})
}

// logout godoc
// @Summary Log out
// @Description Invalidates the presented session token. Succeeds whether or not the token was live.
// @Tags auth
// @Success 204 {string} string "No Content"
// @Router /auth/logout [post]
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	token, ok := middleware.BearerToken(r)
	if ok {
		if err := h.authService.Logout(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func toAccountDTO(account *model.Account) dto.AccountDTO {
	return dto.AccountDTO{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Tier:        string(account.Tier),
		CreatedAt:   account.CreatedAt,
	}
}
