// Package service orchestrates credentials, tokens, MFA and policy into the
// authentication flows exposed to transports.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aipowereddevteam/auth2026/internal/audit"
	"github.com/aipowereddevteam/auth2026/internal/auth"
	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/internal/mfa"
	"github.com/aipowereddevteam/auth2026/internal/policy"
	"github.com/aipowereddevteam/auth2026/internal/repository"
	"github.com/aipowereddevteam/auth2026/internal/token"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
	"github.com/aipowereddevteam/auth2026/pkg/validator"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// Auditor accepts audit entries without blocking.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// AuthService implements the authentication and authorization flows.
type AuthService struct {
	principals repository.PrincipalRepository
	hasher     *auth.Hasher
	tokens     *token.Service
	mfa        *mfa.Engine
	challenges *mfa.ChallengeStore
	policy     *policy.Engine
	audit      Auditor
	logger     *slog.Logger

	// dummyHash is compared against when the email is unknown, so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

// NewAuthService creates a new auth service. It fails when the hasher cannot
// produce the dummy hash used for unknown emails.
func NewAuthService(
	principals repository.PrincipalRepository,
	hasher *auth.Hasher,
	tokens *token.Service,
	mfaEngine *mfa.Engine,
	challenges *mfa.ChallengeStore,
	policyEngine *policy.Engine,
	auditor Auditor,
	logger *slog.Logger,
) (*AuthService, error) {
	dummy, err := hasher.Hash("unknown-principal")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		principals: principals,
		hasher:     hasher,
		tokens:     tokens,
		mfa:        mfaEngine,
		challenges: challenges,
		policy:     policyEngine,
		audit:      auditor,
		logger:     logger,
		dummyHash:  dummy,
	}, nil
}

// --- Inputs ---

// RegisterInput holds the parameters for registering a principal.
type RegisterInput struct {
	Email    string
	Password string
}

// LoginInput holds the parameters for password login.
type LoginInput struct {
	Email    string
	Password string
}

// LogoutInput carries the tokens to revoke. Either may be empty.
type LogoutInput struct {
	AccessToken  string
	RefreshToken string
}

// --- Registration and login ---

// Register creates a principal with role user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, client domain.ClientInfo) (*domain.Profile, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &domain.Principal{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionRegister, p.ID, client, "")
	s.logger.InfoContext(ctx, "principal registered", slog.Int64("principal_id", p.ID))

	profile := p.Profile()
	return &profile, nil
}

// Login verifies a password. Principals with MFA enabled get a challenge
// instead of tokens.
func (s *AuthService) Login(ctx context.Context, in LoginInput, client domain.ClientInfo) (*domain.LoginResult, error) {
	email := normalizeEmail(in.Email)

	p, err := s.principals.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	var ok bool
	if p == nil {
		s.hasher.Verify(s.dummyHash, in.Password)
	} else {
		ok = s.hasher.Verify(p.PasswordHash, in.Password)
	}
	if !ok {
		loginsTotal.WithLabelValues(methodPassword, resultFailure).Inc()
		var id int64
		if p != nil {
			id = p.ID
		}
		s.record(ctx, audit.ActionLoginFail, id, client, "email: "+email)
		return nil, domain.ErrInvalidCredentials
	}

	return s.completeLogin(ctx, p, client, methodPassword, audit.ActionLoginSuccess)
}

// LoginWithOAuth signs in an identity vouched for by an external provider.
// Unknown identities get a principal with a random password; an existing
// principal with the same email is linked to the external id.
func (s *AuthService) LoginWithOAuth(ctx context.Context, identity domain.VerifiedIdentity, client domain.ClientInfo) (*domain.LoginResult, error) {
	identity.Email = normalizeEmail(identity.Email)
	if err := validator.Validate(identity); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	p, err := s.findOrCreateExternal(ctx, identity, client)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, p, client, methodOAuth, audit.ActionLoginOAuthSuccess)
}

func (s *AuthService) findOrCreateExternal(ctx context.Context, identity domain.VerifiedIdentity, client domain.ClientInfo) (*domain.Principal, error) {
	p, err := s.principals.FindByExternalID(ctx, identity.ExternalID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	p, err = s.principals.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if p.ExternalID == "" {
			if err := s.principals.LinkExternalID(ctx, p.ID, identity.ExternalID); err != nil {
				return nil, err
			}
			p.ExternalID = identity.ExternalID
			s.logger.InfoContext(ctx, "external identity linked",
				slog.Int64("principal_id", p.ID),
				slog.String("provider", identity.Provider),
			)
		}
		return p, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	password, err := auth.RandomPassword()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	p = &domain.Principal{
		Email:         identity.Email,
		PasswordHash:  hash,
		Role:          domain.RoleUser,
		EmailVerified: true,
		ExternalID:    identity.ExternalID,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			// A concurrent first login created it.
			return s.principals.FindByEmail(ctx, identity.Email)
		}
		return nil, err
	}

	s.record(ctx, audit.ActionRegisterOAuth, p.ID, client, "provider: "+identity.Provider)
	return p, nil
}

// completeLogin branches on MFA after the first factor succeeded.
func (s *AuthService) completeLogin(ctx context.Context, p *domain.Principal, client domain.ClientInfo, method string, success audit.Action) (*domain.LoginResult, error) {
	if p.MfaState() == domain.MfaEnabled {
		challenge, err := s.challenges.Create(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		loginsTotal.WithLabelValues(method, resultMfaRequired).Inc()
		s.record(ctx, audit.ActionLoginMfaRequired, p.ID, client, "")
		return &domain.LoginResult{Challenge: challenge}, nil
	}

	pair, err := s.issue(ctx, p)
	if err != nil {
		return nil, err
	}
	loginsTotal.WithLabelValues(method, resultSuccess).Inc()
	s.record(ctx, success, p.ID, client, "")
	return &domain.LoginResult{Tokens: pair}, nil
}

// VerifyMfaLogin completes a challenged login. A wrong code leaves the
// challenge usable until it expires; a correct one consumes it.
func (s *AuthService) VerifyMfaLogin(ctx context.Context, sessionID, code string, client domain.ClientInfo) (*domain.TokenPair, error) {
	principalID, err := s.challenges.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.discardChallenge(ctx, sessionID)
			return nil, fmt.Errorf("%w: principal %d no longer exists", domain.ErrSessionExpired, principalID)
		}
		return nil, err
	}
	if p.MfaState() != domain.MfaEnabled {
		s.discardChallenge(ctx, sessionID)
		return nil, fmt.Errorf("%w: mfa no longer enabled", domain.ErrSessionExpired)
	}

	match, err := s.mfa.Check(p, code)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			loginsTotal.WithLabelValues(methodMfa, resultFailure).Inc()
			s.record(ctx, audit.ActionMfaFail, p.ID, client, "login")
		}
		return nil, err
	}

	// The challenge is taken before a backup code is spent, so a request
	// that loses the challenge keeps its code.
	if err := s.challenges.Consume(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := s.mfa.Redeem(ctx, p, match); err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			loginsTotal.WithLabelValues(methodMfa, resultFailure).Inc()
			s.record(ctx, audit.ActionMfaFail, p.ID, client, "login: backup code already used")
		}
		return nil, err
	}
	method := match.Method
	if method == mfa.MethodBackupCode {
		s.record(ctx, audit.ActionMfaBackupCodeUsed, p.ID, client, "")
	}

	pair, err := s.issue(ctx, p)
	if err != nil {
		return nil, err
	}
	loginsTotal.WithLabelValues(methodMfa, resultSuccess).Inc()
	s.record(ctx, audit.ActionLoginMfaSuccess, p.ID, client, string(method))
	return pair, nil
}

// Refresh exchanges the current refresh token for a new pair. The presented
// token stops working once the new hash is stored.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client domain.ClientInfo) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh token", domain.ErrTokenInvalid)
	}

	p, err := s.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.IssuePair(p)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RotateFrom(ctx, p, pair.RefreshToken); err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionTokenRefresh, p.ID, client, "")
	return pair, nil
}

// Logout revokes exactly the presented tokens for their remaining lifetime.
// Calling it again with the same tokens is harmless.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput, client domain.ClientInfo) error {
	if in.AccessToken == "" && in.RefreshToken == "" {
		return nil
	}

	var principalID int64
	if in.AccessToken != "" {
		if claims, err := s.tokens.VerifyAccess(ctx, in.AccessToken); err == nil {
			principalID = claims.PrincipalID
		}
		if err := s.tokens.RevokeRemaining(ctx, in.AccessToken, domain.TokenTypeAccess); err != nil {
			return err
		}
	}
	if in.RefreshToken != "" {
		if err := s.tokens.RevokeRemaining(ctx, in.RefreshToken, domain.TokenTypeRefresh); err != nil {
			return err
		}
	}

	s.record(ctx, audit.ActionLogout, principalID, client, "")
	return nil
}

// --- MFA management ---

// EnrollMfa starts enrollment and returns the secret with its QR code.
func (s *AuthService) EnrollMfa(ctx context.Context, principalID int64, client domain.ClientInfo) (*domain.MfaEnrollment, error) {
	p, err := s.loadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.mfa.GenerateSecret(ctx, p)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionMfaGenerate, p.ID, client, "")
	return enrollment, nil
}

// ConfirmMfa enables MFA and returns the backup codes. They are never shown again.
func (s *AuthService) ConfirmMfa(ctx context.Context, principalID int64, code string, client domain.ClientInfo) ([]string, error) {
	p, err := s.loadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	codes, err := s.mfa.ConfirmEnrollment(ctx, p, code)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			s.record(ctx, audit.ActionMfaFail, p.ID, client, "enrollment")
		}
		return nil, err
	}
	s.record(ctx, audit.ActionMfaEnable, p.ID, client, "")
	return codes, nil
}

// DisableMfa turns MFA off and forgets the secret and backup codes.
func (s *AuthService) DisableMfa(ctx context.Context, principalID int64, client domain.ClientInfo) error {
	p, err := s.loadPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	if err := s.mfa.Disable(ctx, p); err != nil {
		return err
	}
	s.record(ctx, audit.ActionMfaDisable, p.ID, client, "")
	return nil
}

// RegenerateBackupCodes replaces all backup codes.
func (s *AuthService) RegenerateBackupCodes(ctx context.Context, principalID int64, client domain.ClientInfo) ([]string, error) {
	p, err := s.loadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	codes, err := s.mfa.RegenerateBackupCodes(ctx, p)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionMfaBackupCodesRegenerated, p.ID, client, "")
	return codes, nil
}

// --- Authorization and identity ---

// Authorize returns nil when subject may access the resource from client.IP.
// Denials are ErrAccessDenied; a missing resource is a denial too.
func (s *AuthService) Authorize(ctx context.Context, subject policy.Subject, resourceID int64, client domain.ClientInfo) error {
	decision, err := s.policy.Decide(ctx, subject, resourceID, client.IP)
	if err != nil {
		return err
	}
	if decision.Allowed {
		return nil
	}

	details := fmt.Sprintf("resource %d: %s: %s", resourceID, decision.Gate, decision.Reason)
	s.logger.WarnContext(ctx, "access denied",
		slog.Int64("principal_id", subject.PrincipalID),
		slog.Int64("resource_id", resourceID),
		slog.String("gate", string(decision.Gate)),
		slog.String("reason", decision.Reason),
	)
	s.record(ctx, audit.ActionAccessDenied, subject.PrincipalID, client, details)
	return fmt.Errorf("%w: %s", domain.ErrAccessDenied, decision.Reason)
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *AuthService) VerifyAccessToken(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	return s.tokens.VerifyAccess(ctx, accessToken)
}

// GetProfile returns the principal without credentials or secrets.
func (s *AuthService) GetProfile(ctx context.Context, principalID int64) (*domain.Profile, error) {
	p, err := s.loadPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	profile := p.Profile()
	return &profile, nil
}

// --- Helpers ---

// issue signs a pair and makes its refresh token the current one.
func (s *AuthService) issue(ctx context.Context, p *domain.Principal) (*domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(p)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, p.ID, pair.RefreshToken); err != nil {
		return nil, err
	}
	return pair, nil
}

// loadPrincipal loads the principal behind an authenticated request. A
// principal that vanished after its token was issued makes the token useless.
func (s *AuthService) loadPrincipal(ctx context.Context, id int64) (*domain.Principal, error) {
	p, err := s.principals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: principal %d not found", domain.ErrTokenInvalid, id)
		}
		return nil, err
	}
	return p, nil
}

func (s *AuthService) discardChallenge(ctx context.Context, sessionID string) {
	if err := s.challenges.Discard(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to discard mfa challenge", slog.String("error", err.Error()))
	}
}

func (s *AuthService) record(ctx context.Context, action audit.Action, principalID int64, client domain.ClientInfo, details string) {
	s.audit.Record(ctx, audit.Entry{
		Action:      action,
		PrincipalID: principalID,
		IP:          client.IP,
		UserAgent:   client.UserAgent,
		Details:     details,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if err := auth.ValidatePassword(password); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	return nil
}
