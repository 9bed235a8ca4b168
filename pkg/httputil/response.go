package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
	"github.com/aipowereddevteam/auth2026/pkg/logger"
	"github.com/aipowereddevteam/auth2026/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the response envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

type sentinelMapping struct {
	err     error
	code    string
	message string
}

// sentinelCodes is consulted, in order, for errors that are not an AppError.
var sentinelCodes = []sentinelMapping{
	{apperrors.ErrNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrAlreadyExists, "ALREADY_EXISTS", "resource already exists"},
	{apperrors.ErrConflict, "CONFLICT", "request conflicts with current state"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", "invalid input"},
	{apperrors.ErrUnauthorized, "UNAUTHORIZED", "unauthorized"},
	{apperrors.ErrForbidden, "FORBIDDEN", "forbidden"},
	{apperrors.ErrServiceUnavail, "SERVICE_UNAVAILABLE", "service temporarily unavailable"},
}

// WriteError writes a standardized error response. AppErrors keep their own
// code and message; bare sentinels are mapped to generic ones. Anything that
// resolves to a 5xx is logged, preferring the request-scoped logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status := apperrors.HTTPStatus(err)
	body := &ErrorResponse{
		Code:      "INTERNAL_ERROR",
		Message:   "an internal error occurred",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Code, body.Message = appErr.Code, appErr.Message
	} else {
		for _, m := range sentinelCodes {
			if errors.Is(err, m.err) {
				body.Code, body.Message = m.code, m.message
				break
			}
		}
	}

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: body})
}

// WriteValidationError writes a 400 with field-level details when err is a
// validator.ValidationError.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

// ParseID parses a positive numeric path parameter. On failure it writes a 400
// and returns false, signaling the caller to return early.
func ParseID(w http.ResponseWriter, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid id: " + param,
			},
		})
		return 0, false
	}
	return id, true
}
