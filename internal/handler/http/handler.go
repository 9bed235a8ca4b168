package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/internal/policy"
	"github.com/aipowereddevteam/auth2026/internal/service"
	"github.com/aipowereddevteam/auth2026/pkg/netutil"
)

// AuthService is the part of service.AuthService the transport calls.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput, client domain.ClientInfo) (*domain.Profile, error)
	Login(ctx context.Context, in service.LoginInput, client domain.ClientInfo) (*domain.LoginResult, error)
	LoginWithOAuth(ctx context.Context, identity domain.VerifiedIdentity, client domain.ClientInfo) (*domain.LoginResult, error)
	VerifyMfaLogin(ctx context.Context, sessionID, code string, client domain.ClientInfo) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, client domain.ClientInfo) (*domain.TokenPair, error)
	Logout(ctx context.Context, in service.LogoutInput, client domain.ClientInfo) error
	EnrollMfa(ctx context.Context, principalID int64, client domain.ClientInfo) (*domain.MfaEnrollment, error)
	ConfirmMfa(ctx context.Context, principalID int64, code string, client domain.ClientInfo) ([]string, error)
	DisableMfa(ctx context.Context, principalID int64, client domain.ClientInfo) error
	RegenerateBackupCodes(ctx context.Context, principalID int64, client domain.ClientInfo) ([]string, error)
	Authorize(ctx context.Context, subject policy.Subject, resourceID int64, client domain.ClientInfo) error
	VerifyAccessToken(ctx context.Context, accessToken string) (*domain.TokenClaims, error)
	GetProfile(ctx context.Context, principalID int64) (*domain.Profile, error)
}

// refreshCookieName is the http-only cookie that carries the refresh token.
const refreshCookieName = "refresh_token"

// Handler serves the auth, MFA, resource and OAuth endpoints.
type Handler struct {
	service        AuthService
	logger         *slog.Logger
	trustedProxies []netip.Prefix
	secureCookies  bool
	refreshTTL     time.Duration
	now            func() time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc AuthService, logger *slog.Logger, trustedProxies []netip.Prefix, secureCookies bool) *Handler {
	return &Handler{
		service:        svc,
		logger:         logger,
		trustedProxies: trustedProxies,
		secureCookies:  secureCookies,
		refreshTTL:     domain.DefaultRefreshTTL,
		now:            time.Now,
	}
}

// client describes the caller for audit entries and network policy.
func (h *Handler) client(r *http.Request) domain.ClientInfo {
	ua := r.UserAgent()
	if ua == "" {
		ua = "unknown"
	}
	return domain.ClientInfo{
		IP:        netutil.ClientIP(r, h.trustedProxies),
		UserAgent: ua,
	}
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshToken prefers the cookie over the body.
func refreshToken(r *http.Request, fromBody string) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return fromBody
}

type messageResponse struct {
	Message string `json:"message"`
}
