package domain

import (
	"net/http"

	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

// Domain errors. Each wraps a category sentinel from pkg/errors, so callers
// can match either the specific error or its category with errors.Is.
var (
	ErrInvalidCredentials = &apperrors.AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}
	ErrTokenInvalid = &apperrors.AppError{
		Code:    "TOKEN_INVALID",
		Message: "token is invalid or expired",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}
	ErrTokenRevoked = &apperrors.AppError{
		Code:    "TOKEN_REVOKED",
		Message: "token has been revoked",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}
	ErrSessionExpired = &apperrors.AppError{
		Code:    "SESSION_EXPIRED",
		Message: "mfa session expired or invalid",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}
	ErrInvalidCode = &apperrors.AppError{
		Code:    "INVALID_CODE",
		Message: "invalid mfa code",
		Status:  http.StatusUnauthorized,
		Err:     apperrors.ErrUnauthorized,
	}
	ErrAccessDenied = &apperrors.AppError{
		Code:    "ACCESS_DENIED",
		Message: "access denied",
		Status:  http.StatusForbidden,
		Err:     apperrors.ErrForbidden,
	}
	ErrEmailTaken = &apperrors.AppError{
		Code:    "EMAIL_TAKEN",
		Message: "email is already registered",
		Status:  http.StatusConflict,
		Err:     apperrors.ErrConflict,
	}
	ErrMfaAlreadyEnabled = &apperrors.AppError{
		Code:    "MFA_ALREADY_ENABLED",
		Message: "mfa is already enabled",
		Status:  http.StatusConflict,
		Err:     apperrors.ErrConflict,
	}
	ErrMfaNotPending = &apperrors.AppError{
		Code:    "MFA_NOT_PENDING",
		Message: "no mfa enrollment in progress",
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrInvalidInput,
	}
	ErrMfaNotEnabled = &apperrors.AppError{
		Code:    "MFA_NOT_ENABLED",
		Message: "mfa is not enabled",
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrInvalidInput,
	}
)
