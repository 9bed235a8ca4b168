package domain

import "time"

// MfaState is the per-principal MFA enrollment state.
type MfaState int

const (
	MfaDisabled MfaState = iota
	MfaPendingEnrollment
	MfaEnabled
)

func (s MfaState) String() string {
	switch s {
	case MfaPendingEnrollment:
		return "pending_enrollment"
	case MfaEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// MfaChallenge is the short-lived state between a successful password check
// and the second factor.
type MfaChallenge struct {
	SessionID   string    `json:"mfa_session_id"`
	PrincipalID int64     `json:"-"`
	CreatedAt   time.Time `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// MfaEnrollment is returned when a new TOTP secret is generated. The secret
// is shown once so it can be typed into an authenticator by hand.
type MfaEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"otpauth_url"`
	QRCode          string `json:"qr_code"`
}

// BackupCodeCount is how many one-time backup codes are issued at a time.
const BackupCodeCount = 10
