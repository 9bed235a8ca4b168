package http

import (
	"net/http"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/pkg/httputil"
	"github.com/aipowereddevteam/auth2026/pkg/validator"
)

// OAuthLogin handles POST /internal/oauth/login. The caller is the identity
// broker that already completed the provider handshake; the route is
// restricted to the broker's network.
func (h *Handler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var identity domain.VerifiedIdentity
	if err := validator.DecodeAndValidate(w, r, &identity); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.LoginWithOAuth(r.Context(), identity, h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeLoginResult(w, result)
}
