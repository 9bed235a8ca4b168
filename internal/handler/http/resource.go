package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/internal/policy"
	"github.com/aipowereddevteam/auth2026/pkg/httputil"
	"github.com/aipowereddevteam/auth2026/pkg/middleware"
)

type resourceIDKeyType struct{}

var resourceIDKey resourceIDKeyType

// ResourceAccessResponse confirms that every policy gate passed.
type ResourceAccessResponse struct {
	Message    string        `json:"message"`
	ResourceID int64         `json:"resource_id"`
	User       string        `json:"user"`
	Context    AccessContext `json:"context"`
}

// AccessContext echoes the attributes the policy evaluated.
type AccessContext struct {
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
}

// RequirePolicy authorizes the authenticated caller for the {id} resource.
// Mount it after middleware.Authenticate on a route with an {id} parameter.
func (h *Handler) RequirePolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		subject := policy.Subject{
			PrincipalID: middleware.PrincipalIDFromContext(r.Context()),
			Role:        domain.Role(middleware.RoleFromContext(r.Context())),
		}
		if err := h.service.Authorize(r.Context(), subject, id, h.client(r)); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		ctx := context.WithValue(r.Context(), resourceIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetResource handles GET /api/v1/resources/{id}
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(resourceIDKey).(int64)
	var email string
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		email = claims.Email
	}

	httputil.WriteData(w, http.StatusOK, ResourceAccessResponse{
		Message:    "access granted",
		ResourceID: id,
		User:       email,
		Context: AccessContext{
			IP:        h.client(r).IP,
			Timestamp: h.now().UTC(),
		},
	})
}
