package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aipowereddevteam/auth2026/internal/domain"
)

// Claims is the signed claim set shared by access and refresh tokens.
type Claims struct {
	Email string           `json:"email"`
	Role  string           `json:"role"`
	Type  domain.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and parses HS256 tokens.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewManager creates a Manager. Non-positive lifetimes fall back to the
// defaults of 15 minutes and 7 days.
func NewManager(secret, issuer string, accessTTL, refreshTTL time.Duration) *Manager {
	if accessTTL <= 0 {
		accessTTL = domain.DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = domain.DefaultRefreshTTL
	}
	return &Manager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// TTL returns the configured lifetime for typ.
func (m *Manager) TTL(typ domain.TokenType) time.Duration {
	if typ == domain.TokenTypeRefresh {
		return m.refreshTTL
	}
	return m.accessTTL
}

// Issue signs a token of the given type for p. Every token carries a random
// jti, so two tokens issued in the same second still differ.
func (m *Manager) Issue(p *domain.Principal, typ domain.TokenType) (string, error) {
	now := m.now().UTC()
	claims := &Claims{
		Email: p.Email,
		Role:  string(p.Role),
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(p.ID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL(typ))),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, expiry and type. Every failure maps to
// domain.ErrTokenInvalid; the cause is kept in the chain for logging.
func (m *Manager) Parse(tokenString string, want domain.TokenType) (*domain.TokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	var claims Claims
	if _, err := parser.ParseWithClaims(tokenString, &claims, m.key); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: got %q token, want %q", domain.ErrTokenInvalid, claims.Type, want)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad subject %q", domain.ErrTokenInvalid, claims.Subject)
	}

	return &domain.TokenClaims{
		PrincipalID: id,
		Email:       claims.Email,
		Role:        domain.Role(claims.Role),
		Type:        claims.Type,
		TokenID:     claims.ID,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// ExpiresAt reads the expiry of a token signed by this manager without
// enforcing it. Used to size revocation entries for tokens that may already
// be near or past expiry.
func (m *Manager) ExpiresAt(tokenString string) (time.Time, bool) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	if _, err := parser.ParseWithClaims(tokenString, &claims, m.key); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (m *Manager) key(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return m.secret, nil
}
