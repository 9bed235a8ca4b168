package mfa

import (
	"context"
	"fmt"
	"time"

	"github.com/aipowereddevteam/auth2026/internal/domain"
)

// PrincipalStore is the slice of the principal store the MFA engine writes.
type PrincipalStore interface {
	UpdateMfaSecret(ctx context.Context, id int64, pendingSecret string) error
	EnableMfa(ctx context.Context, id int64, pendingSecret string, backupHashes []string) (bool, error)
	UpdateBackupCodes(ctx context.Context, id int64, backupHashes []string) error
	ConsumeBackupCode(ctx context.Context, id int64, hash string) (bool, error)
	ClearMfaState(ctx context.Context, id int64) error
}

// Hasher hashes backup codes.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) bool
}

// Method is the factor that satisfied a verification.
type Method string

const (
	MethodTOTP       Method = "totp"
	MethodBackupCode Method = "backup_code"
)

// Engine drives the Disabled -> PendingEnrollment -> Enabled state machine.
// It never caches principals; callers pass a freshly loaded one.
type Engine struct {
	store  PrincipalStore
	hasher Hasher
	issuer string
	now    func() time.Time
}

// NewEngine creates an MFA engine. issuer is shown in authenticator apps.
func NewEngine(store PrincipalStore, hasher Hasher, issuer string) *Engine {
	return &Engine{store: store, hasher: hasher, issuer: issuer, now: time.Now}
}

// GenerateSecret starts (or restarts) enrollment with a new pending secret.
// The active secret, if any, is untouched.
func (e *Engine) GenerateSecret(ctx context.Context, p *domain.Principal) (*domain.MfaEnrollment, error) {
	if p.MfaState() == domain.MfaEnabled {
		return nil, domain.ErrMfaAlreadyEnabled
	}

	key, err := newKey(e.issuer, p.Email)
	if err != nil {
		return nil, err
	}
	qr, err := qrDataURL(key)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateMfaSecret(ctx, p.ID, key.Secret()); err != nil {
		return nil, err
	}

	return &domain.MfaEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          qr,
	}, nil
}

// ConfirmEnrollment checks code against the pending secret and, on success,
// enables MFA and returns fresh backup codes in plaintext. Only their hashes
// are stored.
func (e *Engine) ConfirmEnrollment(ctx context.Context, p *domain.Principal, code string) ([]string, error) {
	switch p.MfaState() {
	case domain.MfaEnabled:
		return nil, domain.ErrMfaAlreadyEnabled
	case domain.MfaDisabled:
		return nil, domain.ErrMfaNotPending
	}

	if !validTOTP(code, p.MFAPendingSecret, e.now()) {
		return nil, domain.ErrInvalidCode
	}

	codes, hashes, err := e.newCodes()
	if err != nil {
		return nil, err
	}
	enabled, err := e.store.EnableMfa(ctx, p.ID, p.MFAPendingSecret, hashes)
	if err != nil {
		return nil, err
	}
	if !enabled {
		// The pending secret was replaced after the code was checked.
		return nil, fmt.Errorf("%w: enrollment superseded", domain.ErrMfaNotPending)
	}
	return codes, nil
}

// Disable clears every MFA field, including an unfinished enrollment.
func (e *Engine) Disable(ctx context.Context, p *domain.Principal) error {
	if p.MfaState() == domain.MfaDisabled {
		return domain.ErrMfaNotEnabled
	}
	return e.store.ClearMfaState(ctx, p.ID)
}

// Match is a factor that passed Check. A backup code match holds the hash
// to spend in Redeem.
type Match struct {
	Method Method
	hash   string
}

// Check accepts a TOTP code or an unused backup code without spending the
// backup code.
func (e *Engine) Check(p *domain.Principal, code string) (Match, error) {
	if p.MfaState() != domain.MfaEnabled {
		return Match{}, domain.ErrMfaNotEnabled
	}

	if validTOTP(code, p.MFASecret, e.now()) {
		return Match{Method: MethodTOTP}, nil
	}

	candidate := normalizeCode(code)
	if len(candidate) != backupCodeLength {
		return Match{}, domain.ErrInvalidCode
	}
	for _, hash := range p.BackupCodes {
		if e.hasher.Verify(hash, candidate) {
			return Match{Method: MethodBackupCode, hash: hash}, nil
		}
	}
	return Match{}, domain.ErrInvalidCode
}

// Redeem spends a matched backup code with a conditional write, so it
// verifies at most once even under concurrent use. TOTP matches need no
// write.
func (e *Engine) Redeem(ctx context.Context, p *domain.Principal, m Match) error {
	if m.Method != MethodBackupCode {
		return nil
	}
	consumed, err := e.store.ConsumeBackupCode(ctx, p.ID, m.hash)
	if err != nil {
		return err
	}
	if !consumed {
		return fmt.Errorf("%w: backup code already used", domain.ErrInvalidCode)
	}
	return nil
}

// Verify is Check followed by Redeem.
func (e *Engine) Verify(ctx context.Context, p *domain.Principal, code string) (Method, error) {
	m, err := e.Check(p, code)
	if err != nil {
		return "", err
	}
	if err := e.Redeem(ctx, p, m); err != nil {
		return "", err
	}
	return m.Method, nil
}

// RegenerateBackupCodes replaces the backup code set of an enabled principal.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, p *domain.Principal) ([]string, error) {
	if p.MfaState() != domain.MfaEnabled {
		return nil, domain.ErrMfaNotEnabled
	}
	codes, hashes, err := e.newCodes()
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdateBackupCodes(ctx, p.ID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (e *Engine) newCodes() (codes, hashes []string, err error) {
	codes = newBackupCodes(domain.BackupCodeCount)
	hashes = make([]string, len(codes))
	for i, c := range codes {
		if hashes[i], err = e.hasher.Hash(c); err != nil {
			return nil, nil, err
		}
	}
	return codes, hashes, nil
}
