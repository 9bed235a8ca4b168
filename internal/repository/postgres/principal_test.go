package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPrincipalTestFixture(t *testing.T) (*PrincipalRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewPrincipalRepository(mock)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func samplePrincipal() *domain.Principal {
	return &domain.Principal{
		ID:                 7,
		Email:              "alice@example.com",
		PasswordHash:       "hash-abc",
		Role:               domain.RoleUser,
		EmailVerified:      true,
		MFAEnabled:         true,
		MFASecret:          "JBSWY3DPEHPK3PXP",
		BackupCodes:        []string{"h1", "h2"},
		HashedRefreshToken: "refresh-hash",
		CreatedAt:          fixedNow,
		UpdatedAt:          fixedNow,
	}
}

func principalColumnNames() []string {
	return []string{
		"id", "email", "password_hash", "role", "email_verified", "mfa_enabled",
		"mfa_secret", "mfa_pending_secret", "backup_codes",
		"hashed_refresh_token", "external_id", "created_at", "updated_at",
	}
}

func principalRow(p *domain.Principal) *pgxmock.Rows {
	return pgxmock.NewRows(principalColumnNames()).AddRow(
		p.ID, p.Email, p.PasswordHash, p.Role, p.EmailVerified, p.MFAEnabled,
		p.MFASecret, p.MFAPendingSecret, p.BackupCodes,
		p.HashedRefreshToken, p.ExternalID, p.CreatedAt, p.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestPrincipalRepository_Create_Success(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	p := &domain.Principal{Email: "bob@example.com", PasswordHash: "h", Role: domain.RoleUser}

	mock.ExpectQuery("INSERT INTO principals").
		WithArgs(p.Email, p.PasswordHash, p.Role, false, "", []string{}, fixedNow, fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, int64(11), p.ID)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	p := &domain.Principal{Email: "bob@example.com", PasswordHash: "h", Role: domain.RoleUser}

	mock.ExpectQuery("INSERT INTO principals").
		WillReturnError(fmt.Errorf("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_Create_DBError(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO principals").WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), &domain.Principal{Email: "x@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Find
// ---------------------------------------------------------------------------

func TestPrincipalRepository_FindByID_Success(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	p := samplePrincipal()
	mock.ExpectQuery("SELECT .+ FROM principals WHERE id =").
		WithArgs(p.ID).
		WillReturnRows(principalRow(p))

	got, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, domain.MfaEnabled, got.MfaState())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_FindByID_NotFound(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM principals WHERE id =").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.FindByID(context.Background(), 99)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_FindByEmail_LowerCases(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	p := samplePrincipal()
	mock.ExpectQuery("SELECT .+ FROM principals WHERE email =").
		WithArgs("alice@example.com").
		WillReturnRows(principalRow(p))

	got, err := repo.FindByEmail(context.Background(), "Alice@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_FindByExternalID_DBError(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM principals WHERE external_id =").
		WithArgs("google|1").
		WillReturnError(errors.New("timeout"))

	_, err := repo.FindByExternalID(context.Background(), "google|1")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, 503, apperrors.HTTPStatus(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Narrow updates
// ---------------------------------------------------------------------------

func TestPrincipalRepository_LinkExternalID_OnlyWhenUnlinked(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals SET external_id = .+ WHERE id = .+ AND external_id IS NULL").
		WithArgs(int64(7), "google|1", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.LinkExternalID(context.Background(), 7, "google|1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_UpdateMfaSecret(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals SET mfa_pending_secret").
		WithArgs(int64(7), "PENDING", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateMfaSecret(context.Background(), 7, "PENDING"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_UpdateMfaSecret_NotFound(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals SET mfa_pending_secret").
		WithArgs(int64(7), "PENDING", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateMfaSecret(context.Background(), 7, "PENDING")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_EnableMfa(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "pending secret matches", affected: 1, want: true},
		{name: "pending secret replaced concurrently", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newPrincipalTestFixture(t)
			defer mock.Close()

			hashes := []string{"a", "b"}
			mock.ExpectExec("UPDATE principals SET mfa_secret = mfa_pending_secret.+WHERE id = .+ AND mfa_pending_secret = ").
				WithArgs(int64(7), "PENDING", hashes, fixedNow).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			ok, err := repo.EnableMfa(context.Background(), 7, "PENDING", hashes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPrincipalRepository_ConsumeBackupCode(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals SET backup_codes = array_remove.+ANY\\(backup_codes\\)").
		WithArgs(int64(7), "h1", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE principals SET backup_codes = array_remove.+ANY\\(backup_codes\\)").
		WithArgs(int64(7), "h1", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	first, err := repo.ConsumeBackupCode(context.Background(), 7, "h1")
	require.NoError(t, err)
	second, err := repo.ConsumeBackupCode(context.Background(), 7, "h1")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second, "a consumed code must not be consumed again")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_UpdateBackupCodes(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	hashes := []string{"x", "y"}
	mock.ExpectExec("UPDATE principals SET backup_codes = ").
		WithArgs(int64(7), hashes, fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateBackupCodes(context.Background(), 7, hashes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_ClearMfaState(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals SET mfa_enabled = FALSE, mfa_secret = NULL, mfa_pending_secret = NULL").
		WithArgs(int64(7), fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.ClearMfaState(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_UpdateRefreshHash(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals SET hashed_refresh_token = ").
		WithArgs(int64(7), "new", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateRefreshHash(context.Background(), 7, "new"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_SwapRefreshHash(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals SET hashed_refresh_token = .+ AND hashed_refresh_token = ").
		WithArgs(int64(7), "old", "new", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE principals SET hashed_refresh_token = .+ AND hashed_refresh_token = ").
		WithArgs(int64(7), "old", "newer", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.SwapRefreshHash(context.Background(), 7, "old", "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SwapRefreshHash(context.Background(), 7, "old", "newer")
	require.NoError(t, err)
	assert.False(t, ok, "second swap from the same hash must lose")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_SwapRefreshHash_DBError(t *testing.T) {
	repo, mock := newPrincipalTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE principals").WillReturnError(errors.New("connection reset"))

	ok, err := repo.SwapRefreshHash(context.Background(), 7, "old", "new")
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.NoError(t, mock.ExpectationsWereMet())
}
