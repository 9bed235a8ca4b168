// Package token issues, verifies, rotates and revokes access/refresh pairs.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

// RefreshStore is the slice of the principal store the token service writes.
type RefreshStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Principal, error)
	UpdateRefreshHash(ctx context.Context, id int64, hash string) error
	SwapRefreshHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error)
}

// TokenHasher hashes refresh tokens for storage.
type TokenHasher interface {
	HashToken(token string) (string, error)
	VerifyToken(hash, token string) bool
}

// Service is the token lifecycle.
type Service struct {
	jwt       *Manager
	revoked   *RevocationList
	refreshes RefreshStore
	hasher    TokenHasher
}

// NewService creates a token service.
func NewService(jwt *Manager, revoked *RevocationList, refreshes RefreshStore, hasher TokenHasher) *Service {
	return &Service{jwt: jwt, revoked: revoked, refreshes: refreshes, hasher: hasher}
}

// IssuePair signs a fresh access and refresh token for p.
func (s *Service) IssuePair(p *domain.Principal) (*domain.TokenPair, error) {
	access, err := s.jwt.Issue(p, domain.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.Issue(p, domain.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	tokensIssuedTotal.WithLabelValues(string(domain.TokenTypeAccess)).Inc()
	tokensIssuedTotal.WithLabelValues(string(domain.TokenTypeRefresh)).Inc()

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.TTL(domain.TokenTypeAccess).Seconds()),
	}, nil
}

// Rotate makes refreshToken the principal's only valid refresh token.
// Earlier refresh tokens are not revoked; they fail the hash comparison.
func (s *Service) Rotate(ctx context.Context, principalID int64, refreshToken string) error {
	hash, err := s.hasher.HashToken(refreshToken)
	if err != nil {
		return err
	}
	return s.refreshes.UpdateRefreshHash(ctx, principalID, hash)
}

// RotateFrom replaces the hash p was loaded with. If another refresh won the
// race the swap matches nothing and ErrTokenInvalid is returned.
func (s *Service) RotateFrom(ctx context.Context, p *domain.Principal, refreshToken string) error {
	hash, err := s.hasher.HashToken(refreshToken)
	if err != nil {
		return err
	}
	swapped, err := s.refreshes.SwapRefreshHash(ctx, p.ID, p.HashedRefreshToken, hash)
	if err != nil {
		return err
	}
	if !swapped {
		return fmt.Errorf("%w: refresh token already rotated", domain.ErrTokenInvalid)
	}
	return nil
}

// VerifyRefresh checks revocation, signature, expiry, type and that the token
// is the principal's current refresh token. It returns the principal as
// loaded, for use with RotateFrom.
func (s *Service) VerifyRefresh(ctx context.Context, refreshToken string) (*domain.Principal, error) {
	claims, err := s.verify(ctx, refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	p, err := s.refreshes.FindByID(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: principal %d not found", domain.ErrTokenInvalid, claims.PrincipalID)
		}
		return nil, err
	}
	if !s.hasher.VerifyToken(p.HashedRefreshToken, refreshToken) {
		tokenVerificationsTotal.WithLabelValues(string(domain.TokenTypeRefresh), "superseded").Inc()
		return nil, fmt.Errorf("%w: refresh token superseded", domain.ErrTokenInvalid)
	}
	return p, nil
}

// VerifyAccess checks revocation, signature, expiry and type.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	return s.verify(ctx, accessToken, domain.TokenTypeAccess)
}

func (s *Service) verify(ctx context.Context, raw string, typ domain.TokenType) (*domain.TokenClaims, error) {
	revoked, err := s.revoked.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		tokenVerificationsTotal.WithLabelValues(string(typ), "revoked").Inc()
		return nil, domain.ErrTokenRevoked
	}

	claims, err := s.jwt.Parse(raw, typ)
	if err != nil {
		tokenVerificationsTotal.WithLabelValues(string(typ), "invalid").Inc()
		return nil, err
	}
	tokenVerificationsTotal.WithLabelValues(string(typ), "valid").Inc()
	return claims, nil
}

// Revoke lists token for ttl.
func (s *Service) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return s.revoked.Revoke(ctx, token, ttl)
}

// RevokeRemaining lists token for whatever is left of its lifetime. Tokens
// that have already expired, or that were not signed with our key, are
// skipped.
func (s *Service) RevokeRemaining(ctx context.Context, token string, typ domain.TokenType) error {
	ttl := s.RevocationTTL(token)
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Revoke(ctx, token, ttl); err != nil {
		return err
	}
	tokensRevokedTotal.WithLabelValues(string(typ)).Inc()
	return nil
}

// RevocationTTL is the remaining lifetime of token. It is zero when the
// token has expired or its signature does not verify, since such a token
// can never be accepted.
func (s *Service) RevocationTTL(token string) time.Duration {
	exp, ok := s.jwt.ExpiresAt(token)
	if !ok {
		return 0
	}
	remaining := exp.Sub(s.jwt.now())
	if remaining <= 0 {
		return 0
	}
	// Round up so the entry never disappears before the token does.
	return remaining.Truncate(time.Second) + time.Second
}
