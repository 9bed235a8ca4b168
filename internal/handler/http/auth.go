package http

import (
	"net/http"
	"time"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/internal/service"
	"github.com/aipowereddevteam/auth2026/pkg/httputil"
	"github.com/aipowereddevteam/auth2026/pkg/middleware"
	"github.com/aipowereddevteam/auth2026/pkg/validator"
)

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the JSON request body for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// VerifyMfaRequest is the JSON request body for the second login step.
type VerifyMfaRequest struct {
	MfaSessionID string `json:"mfa_session_id" validate:"required,uuid4"`
	Code         string `json:"code" validate:"required,max=32"`
}

// TokenRequest carries a refresh token when the cookie is absent.
type TokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// --- Response types ---

// MfaRequiredResponse replaces tokens when a second factor is needed.
type MfaRequiredResponse struct {
	Status       string    `json:"status"`
	MfaSessionID string    `json:"mfa_session_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	profile, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	}, h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, profile)
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeLoginResult(w, result)
}

// VerifyMfa handles POST /api/v1/auth/mfa/verify
func (h *Handler) VerifyMfa(w http.ResponseWriter, r *http.Request) {
	var req VerifyMfaRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	pair, err := h.service.VerifyMfaLogin(r.Context(), req.MfaSessionID, req.Code, h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	httputil.WriteData(w, http.StatusOK, pair)
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token is read from
// the cookie, or from the body when no cookie is sent.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	pair, err := h.service.Refresh(r.Context(), refreshToken(r, req.RefreshToken), h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	httputil.WriteData(w, http.StatusOK, pair)
}

// Logout handles POST /api/v1/auth/logout. Both tokens are optional: the
// access token comes from the Authorization header, the refresh token from
// the cookie or body.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	in := service.LogoutInput{RefreshToken: refreshToken(r, req.RefreshToken)}
	in.AccessToken, _ = middleware.BearerToken(r)

	h.clearRefreshCookie(w)
	if in.RefreshToken == "" && in.AccessToken == "" {
		httputil.WriteData(w, http.StatusOK, messageResponse{Message: "already logged out"})
		return
	}

	if err := h.service.Logout(r.Context(), in, h.client(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "logged out successfully"})
}

// Profile handles GET /api/v1/auth/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), middleware.PrincipalIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, profile)
}

func (h *Handler) writeLoginResult(w http.ResponseWriter, result *domain.LoginResult) {
	if result.MfaRequired() {
		httputil.WriteData(w, http.StatusOK, MfaRequiredResponse{
			Status:       "mfa_required",
			MfaSessionID: result.Challenge.SessionID,
			ExpiresAt:    result.Challenge.ExpiresAt,
		})
		return
	}

	h.setRefreshCookie(w, result.Tokens.RefreshToken)
	httputil.WriteData(w, http.StatusOK, result.Tokens)
}

// decodeOptional decodes a JSON body if one was sent. It writes a 400 and
// returns false on malformed input.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := validator.DecodeAndValidate(w, r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
