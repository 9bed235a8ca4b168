package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/pkg/database"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

const storeName = "postgres"

// principalColumns is the projection every principal read scans. Nullable
// text columns are coalesced so they scan into plain strings.
const principalColumns = `id, email, password_hash, role, email_verified, mfa_enabled,
		COALESCE(mfa_secret, ''), COALESCE(mfa_pending_secret, ''), backup_codes,
		COALESCE(hashed_refresh_token, ''), COALESCE(external_id, ''), created_at, updated_at`

// PrincipalRepository implements repository.PrincipalRepository using PostgreSQL.
type PrincipalRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewPrincipalRepository creates a new PostgreSQL-backed principal repository.
func NewPrincipalRepository(db database.DBTX) *PrincipalRepository {
	return &PrincipalRepository{db: db, now: time.Now}
}

// Create inserts a new principal and fills in the generated id.
func (r *PrincipalRepository) Create(ctx context.Context, p *domain.Principal) (err error) {
	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.BackupCodes == nil {
		p.BackupCodes = []string{}
	}

	query := `
		INSERT INTO principals (email, password_hash, role, email_verified, external_id, backup_codes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "CreatePrincipal", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		p.Email,
		p.PasswordHash,
		p.Role,
		p.EmailVerified,
		p.ExternalID,
		p.BackupCodes,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return apperrors.Unavailable(storeName, err)
	}
	return nil
}

// FindByID retrieves a principal by id.
func (r *PrincipalRepository) FindByID(ctx context.Context, id int64) (*domain.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`
	return r.scanPrincipal(ctx, "FindPrincipalByID", query, id)
}

// FindByEmail retrieves a principal by email. Emails are stored lower-cased.
func (r *PrincipalRepository) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE email = $1`
	return r.scanPrincipal(ctx, "FindPrincipalByEmail", query, strings.ToLower(email))
}

// FindByExternalID retrieves the principal linked to an identity provider subject.
func (r *PrincipalRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE external_id = $1`
	return r.scanPrincipal(ctx, "FindPrincipalByExternalID", query, externalID)
}

// LinkExternalID links an external subject id. An already linked principal
// keeps its existing id.
func (r *PrincipalRepository) LinkExternalID(ctx context.Context, id int64, externalID string) error {
	query := `
		UPDATE principals
		SET external_id = $2, updated_at = $3
		WHERE id = $1 AND external_id IS NULL`

	_, err := r.exec(ctx, "LinkExternalID", query, id, externalID, r.now().UTC())
	return err
}

// UpdateMfaSecret stores a pending enrollment secret, replacing any earlier one.
func (r *PrincipalRepository) UpdateMfaSecret(ctx context.Context, id int64, pendingSecret string) error {
	query := `
		UPDATE principals
		SET mfa_pending_secret = $2, updated_at = $3
		WHERE id = $1`

	return r.execOne(ctx, "UpdateMfaSecret", query, id, id, pendingSecret, r.now().UTC())
}

// EnableMfa promotes the pending secret in a single statement.
func (r *PrincipalRepository) EnableMfa(ctx context.Context, id int64, pendingSecret string, backupHashes []string) (bool, error) {
	query := `
		UPDATE principals
		SET mfa_secret = mfa_pending_secret, mfa_pending_secret = NULL, mfa_enabled = TRUE,
		    backup_codes = $3, updated_at = $4
		WHERE id = $1 AND mfa_pending_secret = $2`

	n, err := r.exec(ctx, "EnableMfa", query, id, pendingSecret, backupHashes, r.now().UTC())
	return n == 1, err
}

// UpdateBackupCodes replaces the backup code set.
func (r *PrincipalRepository) UpdateBackupCodes(ctx context.Context, id int64, backupHashes []string) error {
	query := `
		UPDATE principals
		SET backup_codes = $2, updated_at = $3
		WHERE id = $1`

	return r.execOne(ctx, "UpdateBackupCodes", query, id, id, backupHashes, r.now().UTC())
}

// ConsumeBackupCode removes one hash only if it is still present.
func (r *PrincipalRepository) ConsumeBackupCode(ctx context.Context, id int64, hash string) (bool, error) {
	query := `
		UPDATE principals
		SET backup_codes = array_remove(backup_codes, $2), updated_at = $3
		WHERE id = $1 AND $2 = ANY(backup_codes)`

	n, err := r.exec(ctx, "ConsumeBackupCode", query, id, hash, r.now().UTC())
	return n == 1, err
}

// ClearMfaState disables MFA and drops the secrets and backup codes.
func (r *PrincipalRepository) ClearMfaState(ctx context.Context, id int64) error {
	query := `
		UPDATE principals
		SET mfa_enabled = FALSE, mfa_secret = NULL, mfa_pending_secret = NULL,
		    backup_codes = '{}', updated_at = $2
		WHERE id = $1`

	return r.execOne(ctx, "ClearMfaState", query, id, id, r.now().UTC())
}

// UpdateRefreshHash stores the hash of the current refresh token.
func (r *PrincipalRepository) UpdateRefreshHash(ctx context.Context, id int64, hash string) error {
	query := `
		UPDATE principals
		SET hashed_refresh_token = $2, updated_at = $3
		WHERE id = $1`

	return r.execOne(ctx, "UpdateRefreshHash", query, id, id, hash, r.now().UTC())
}

// SwapRefreshHash is a compare-and-swap on the stored refresh hash.
func (r *PrincipalRepository) SwapRefreshHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	query := `
		UPDATE principals
		SET hashed_refresh_token = $3, updated_at = $4
		WHERE id = $1 AND hashed_refresh_token = $2`

	n, err := r.exec(ctx, "SwapRefreshHash", query, id, oldHash, newHash, r.now().UTC())
	return n == 1, err
}

// exec runs a statement and returns the affected row count.
func (r *PrincipalRepository) exec(ctx context.Context, operation, query string, args ...any) (n int64, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Unavailable(storeName, err)
	}
	return ct.RowsAffected(), nil
}

// execOne is exec for statements that must hit the principal.
func (r *PrincipalRepository) execOne(ctx context.Context, operation, query string, id int64, args ...any) error {
	n, err := r.exec(ctx, operation, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("principal", strconv.FormatInt(id, 10))
	}
	return nil
}

// scanPrincipal executes a query expected to return a single principal row.
func (r *PrincipalRepository) scanPrincipal(ctx context.Context, operation, query string, args ...any) (_ *domain.Principal, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	var p domain.Principal
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.Role,
		&p.EmailVerified,
		&p.MFAEnabled,
		&p.MFASecret,
		&p.MFAPendingSecret,
		&p.BackupCodes,
		&p.HashedRefreshToken,
		&p.ExternalID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Unavailable(storeName, err)
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
