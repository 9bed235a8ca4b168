package token

import (
	"context"
	"errors"
	"time"

	"github.com/aipowereddevteam/auth2026/internal/session"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

const revokedPrefix = "blacklist:"

// RevocationList records revoked tokens until they would have expired anyway.
type RevocationList struct {
	store session.Store
}

// NewRevocationList creates a revocation list on the given session store.
func NewRevocationList(store session.Store) *RevocationList {
	return &RevocationList{store: store}
}

// Revoke lists token for ttl. A non-positive ttl is a no-op: the token is
// already unusable.
func (l *RevocationList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return l.store.Set(ctx, revokedPrefix+token, "1", ttl)
}

// IsRevoked reports whether token is listed.
func (l *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	_, err := l.store.Get(ctx, revokedPrefix+token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
