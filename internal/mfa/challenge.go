package mfa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/internal/session"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

const (
	challengePrefix = "mfa_session:"

	// DefaultChallengeTTL bounds the time between password and second factor.
	DefaultChallengeTTL = 120 * time.Second
)

// ChallengeStore keeps pending MFA login challenges in the session store.
type ChallengeStore struct {
	store session.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewChallengeStore creates a challenge store. A non-positive ttl uses
// DefaultChallengeTTL.
func NewChallengeStore(store session.Store, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{store: store, ttl: ttl, now: time.Now}
}

// Create opens a challenge for principalID under a random session id.
func (c *ChallengeStore) Create(ctx context.Context, principalID int64) (*domain.MfaChallenge, error) {
	id := uuid.NewString()
	if err := c.store.Set(ctx, challengePrefix+id, strconv.FormatInt(principalID, 10), c.ttl); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	return &domain.MfaChallenge{
		SessionID:   id,
		PrincipalID: principalID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}, nil
}

// Resolve returns the principal a live challenge belongs to without
// consuming it.
func (c *ChallengeStore) Resolve(ctx context.Context, sessionID string) (int64, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return 0, domain.ErrSessionExpired
	}
	raw, err := c.store.Get(ctx, challengePrefix+sessionID)
	if err != nil {
		return 0, mapMiss(err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt challenge", domain.ErrSessionExpired)
	}
	return id, nil
}

// Consume atomically removes the challenge. Exactly one of several
// concurrent callers succeeds; the others get ErrSessionExpired.
func (c *ChallengeStore) Consume(ctx context.Context, sessionID string) error {
	_, err := c.store.Take(ctx, challengePrefix+sessionID)
	return mapMiss(err)
}

// Discard removes the challenge without reporting whether it existed.
func (c *ChallengeStore) Discard(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, challengePrefix+sessionID)
}

func mapMiss(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.ErrSessionExpired
	}
	return err
}
