package domain

import "time"

// Principal is an authenticatable account. Sensitive fields never serialize.
type Principal struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	Role               Role      `json:"role"`
	EmailVerified      bool      `json:"email_verified"`
	MFAEnabled         bool      `json:"mfa_enabled"`
	MFASecret          string    `json:"-"`
	MFAPendingSecret   string    `json:"-"`
	BackupCodes        []string  `json:"-"`
	HashedRefreshToken string    `json:"-"`
	ExternalID         string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MfaState derives the enrollment state from the stored MFA fields.
func (p *Principal) MfaState() MfaState {
	switch {
	case p.MFAEnabled && p.MFASecret != "":
		return MfaEnabled
	case p.MFAPendingSecret != "":
		return MfaPendingEnrollment
	default:
		return MfaDisabled
	}
}

// Profile is the public view of a principal.
type Profile struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	MFAEnabled    bool      `json:"mfa_enabled"`
	OAuthLinked   bool      `json:"oauth_linked"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile strips credentials, secrets, backup codes and the refresh hash.
func (p *Principal) Profile() Profile {
	return Profile{
		ID:            p.ID,
		Email:         p.Email,
		Role:          p.Role,
		EmailVerified: p.EmailVerified,
		MFAEnabled:    p.MFAEnabled,
		OAuthLinked:   p.ExternalID != "",
		CreatedAt:     p.CreatedAt,
	}
}

// VerifiedIdentity is what an external identity provider vouches for.
type VerifiedIdentity struct {
	Email      string `json:"email" validate:"required,email"`
	ExternalID string `json:"external_id" validate:"required,max=255"`
	Provider   string `json:"provider" validate:"required,max=64"`
}
