package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, IsValidRole(string(r)), "expected %q to be valid", r)
	}
	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("ADMIN"))
	assert.False(t, IsValidRole("customer"))
}

func TestPrincipal_MfaState(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		want MfaState
	}{
		{"fresh", Principal{}, MfaDisabled},
		{"pending", Principal{MFAPendingSecret: "PENDING"}, MfaPendingEnrollment},
		{"enabled", Principal{MFAEnabled: true, MFASecret: "ACTIVE"}, MfaEnabled},
		{"enabled with new pending secret", Principal{MFAEnabled: true, MFASecret: "ACTIVE", MFAPendingSecret: "X"}, MfaEnabled},
		{"flag without secret", Principal{MFAEnabled: true}, MfaDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.MfaState())
		})
	}
}

func TestPrincipal_JSONOmitsSensitiveFields(t *testing.T) {
	p := Principal{
		ID:                 7,
		Email:              "a@example.com",
		PasswordHash:       "pw-hash",
		Role:               RoleUser,
		MFASecret:          "SECRET",
		MFAPendingSecret:   "PENDING",
		BackupCodes:        []string{"code-hash"},
		HashedRefreshToken: "rt-hash",
		ExternalID:         "google-123",
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	for _, leaked := range []string{"pw-hash", "SECRET", "PENDING", "code-hash", "rt-hash", "google-123"} {
		assert.NotContains(t, string(raw), leaked)
	}
}

func TestPrincipal_Profile(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Principal{
		ID: 7, Email: "a@example.com", Role: RoleAdmin, MFAEnabled: true,
		MFASecret: "S", ExternalID: "ext", CreatedAt: created,
	}

	assert.Equal(t, Profile{
		ID: 7, Email: "a@example.com", Role: RoleAdmin, MFAEnabled: true,
		OAuthLinked: true, CreatedAt: created,
	}, p.Profile())
}

func TestLoginResult_MfaRequired(t *testing.T) {
	assert.False(t, LoginResult{Tokens: &TokenPair{}}.MfaRequired())
	assert.True(t, LoginResult{Challenge: &MfaChallenge{SessionID: "s"}}.MfaRequired())
}

func TestErrors_MatchCategory(t *testing.T) {
	tests := []struct {
		err      error
		category error
		status   int
	}{
		{ErrInvalidCredentials, apperrors.ErrUnauthorized, 401},
		{ErrTokenInvalid, apperrors.ErrUnauthorized, 401},
		{ErrTokenRevoked, apperrors.ErrUnauthorized, 401},
		{ErrSessionExpired, apperrors.ErrUnauthorized, 401},
		{ErrInvalidCode, apperrors.ErrUnauthorized, 401},
		{ErrAccessDenied, apperrors.ErrForbidden, 403},
		{ErrEmailTaken, apperrors.ErrConflict, 409},
		{ErrMfaAlreadyEnabled, apperrors.ErrConflict, 409},
		{ErrMfaNotPending, apperrors.ErrInvalidInput, 400},
		{ErrMfaNotEnabled, apperrors.ErrInvalidInput, 400},
	}
	for _, tt := range tests {
		wrapped := apperrors.Wrap(tt.err, "op")
		assert.True(t, errors.Is(wrapped, tt.err))
		assert.True(t, errors.Is(wrapped, tt.category))
		assert.Equal(t, tt.status, apperrors.HTTPStatus(wrapped))
	}
	assert.False(t, errors.Is(ErrTokenInvalid, ErrTokenRevoked))
}

func TestDecision(t *testing.T) {
	assert.True(t, Allow().Allowed)
	d := Deny(GateReBAC, "not a member")
	assert.False(t, d.Allowed)
	assert.Equal(t, GateReBAC, d.Gate)
}
