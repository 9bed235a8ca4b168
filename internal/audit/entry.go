// Package audit records security-relevant events on a best-effort side
// channel. Recording never blocks or fails the operation being audited.
package audit

import "time"

// Action identifies what happened.
type Action string

const (
	ActionLoginFail                 Action = "LOGIN_FAIL"
	ActionLoginSuccess              Action = "LOGIN_SUCCESS"
	ActionLoginMfaRequired          Action = "LOGIN_MFA_REQUIRED"
	ActionLoginMfaSuccess           Action = "LOGIN_MFA_SUCCESS"
	ActionMfaFail                   Action = "MFA_FAIL"
	ActionMfaGenerate               Action = "MFA_GENERATE"
	ActionMfaEnable                 Action = "MFA_ENABLE"
	ActionMfaDisable                Action = "MFA_DISABLE"
	ActionMfaBackupCodeUsed         Action = "MFA_BACKUP_CODE_USED"
	ActionMfaBackupCodesRegenerated Action = "MFA_BACKUP_CODES_REGENERATED"
	ActionRegister                  Action = "REGISTER"
	ActionRegisterOAuth             Action = "REGISTER_OAUTH"
	ActionLoginOAuthSuccess         Action = "LOGIN_OAUTH_SUCCESS"
	ActionTokenRefresh              Action = "TOKEN_REFRESH"
	ActionLogout                    Action = "LOGOUT"
	ActionAccessDenied              Action = "ACCESS_DENIED"
)

// Entry is one audit record. PrincipalID is zero when the actor is unknown,
// e.g. a failed login for an unregistered email.
type Entry struct {
	Action      Action    `json:"action"`
	PrincipalID int64     `json:"principal_id,omitempty"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
