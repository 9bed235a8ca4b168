package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
	"github.com/aipowereddevteam/auth2026/pkg/httputil"
	"github.com/aipowereddevteam/auth2026/pkg/logger"
)

type contextKeyType string

const (
	claimsKey      contextKeyType = "claims"
	accessTokenKey contextKeyType = "access_token"
)

// Claims is the authenticated identity attached to a request.
type Claims struct {
	PrincipalID int64
	Email       string
	Role        string
}

// TokenValidator verifies a bearer access token and returns its claims.
// Returned errors are written as-is, so they should be AppErrors.
type TokenValidator func(ctx context.Context, token string) (*Claims, error)

var errMissingToken = &apperrors.AppError{
	Code:    "TOKEN_INVALID",
	Message: "missing or malformed bearer token",
	Status:  http.StatusUnauthorized,
	Err:     apperrors.ErrUnauthorized,
}

// Authenticate requires a valid bearer access token. On success the claims and
// the raw token are stored in the context and the request logger gains
// principal_id.
func Authenticate(validate TokenValidator, fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				httputil.WriteError(w, r, errMissingToken, fallback)
				return
			}

			claims, err := validate(r.Context(), token)
			if err != nil {
				httputil.WriteError(w, r, err, fallback)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, accessTokenKey, token)
			ctx = logger.WithPrincipalID(ctx, strconv.FormatInt(claims.PrincipalID, 10))
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(
				slog.Int64("principal_id", claims.PrincipalID),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose role is not listed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := roleSet[RoleFromContext(r.Context())]; !ok {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "ACCESS_DENIED", Message: "insufficient permissions"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// PrincipalIDFromContext returns the authenticated principal id, or 0.
func PrincipalIDFromContext(ctx context.Context) int64 {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.PrincipalID
	}
	return 0
}

// RoleFromContext returns the authenticated role, or "".
func RoleFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Role
	}
	return ""
}

// AccessTokenFromContext returns the raw bearer token accepted by Authenticate.
func AccessTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(accessTokenKey).(string)
	return t
}

// WithClaims stores claims in ctx. Used by tests and internal callers that
// authenticate by other means.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}
