package http

import (
	"net/http"

	"github.com/aipowereddevteam/auth2026/pkg/httputil"
	"github.com/aipowereddevteam/auth2026/pkg/middleware"
	"github.com/aipowereddevteam/auth2026/pkg/validator"
)

// EnableMfaRequest is the JSON request body for confirming enrollment.
type EnableMfaRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// BackupCodesResponse returns freshly generated backup codes. They are shown
// once and never retrievable again.
type BackupCodesResponse struct {
	Message     string   `json:"message,omitempty"`
	BackupCodes []string `json:"backup_codes"`
}

// GenerateMfa handles POST /api/v1/mfa/generate
func (h *Handler) GenerateMfa(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.service.EnrollMfa(r.Context(), middleware.PrincipalIDFromContext(r.Context()), h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, enrollment)
}

// EnableMfa handles POST /api/v1/mfa/enable
func (h *Handler) EnableMfa(w http.ResponseWriter, r *http.Request) {
	var req EnableMfaRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	codes, err := h.service.ConfirmMfa(r.Context(), middleware.PrincipalIDFromContext(r.Context()), req.Code, h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, BackupCodesResponse{
		Message:     "mfa enabled successfully",
		BackupCodes: codes,
	})
}

// DisableMfa handles POST /api/v1/mfa/disable
func (h *Handler) DisableMfa(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DisableMfa(r.Context(), middleware.PrincipalIDFromContext(r.Context()), h.client(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, messageResponse{Message: "mfa disabled successfully"})
}

// RegenerateBackupCodes handles POST /api/v1/mfa/backup-codes
func (h *Handler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.RegenerateBackupCodes(r.Context(), middleware.PrincipalIDFromContext(r.Context()), h.client(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}
