package domain

import "time"

// TokenType distinguishes access from refresh tokens in the claim set.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenClaims is the verified content of a token.
type TokenClaims struct {
	PrincipalID int64
	Email       string
	Role        Role
	Type        TokenType
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// LoginResult is either a token pair or an MFA challenge, never both.
type LoginResult struct {
	Tokens    *TokenPair
	Challenge *MfaChallenge
}

// MfaRequired reports whether the caller must complete a second factor.
func (r LoginResult) MfaRequired() bool {
	return r.Challenge != nil
}

// ClientInfo describes where a request came from, for audit entries.
type ClientInfo struct {
	IP        string
	UserAgent string
}
