package repository

import (
	"context"

	"github.com/aipowereddevteam/auth2026/internal/domain"
)

// PrincipalRepository defines principal persistence. Writes touch only the
// named columns; there is no whole-record update.
type PrincipalRepository interface {
	// Create inserts p and sets its ID and timestamps.
	Create(ctx context.Context, p *domain.Principal) error

	FindByID(ctx context.Context, id int64) (*domain.Principal, error)
	FindByEmail(ctx context.Context, email string) (*domain.Principal, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.Principal, error)

	// LinkExternalID sets the external subject id if none is linked yet.
	LinkExternalID(ctx context.Context, id int64, externalID string) error

	// UpdateMfaSecret stores a pending enrollment secret.
	UpdateMfaSecret(ctx context.Context, id int64, pendingSecret string) error

	// EnableMfa promotes pendingSecret to the active secret together with
	// the enabled flag and backup code hashes. It reports false when the
	// stored pending secret no longer matches.
	EnableMfa(ctx context.Context, id int64, pendingSecret string, backupHashes []string) (bool, error)

	UpdateBackupCodes(ctx context.Context, id int64, backupHashes []string) error

	// ConsumeBackupCode removes hash from the set. It reports false when the
	// hash was not present, i.e. another request already used it.
	ConsumeBackupCode(ctx context.Context, id int64, hash string) (bool, error)

	// ClearMfaState resets every MFA column.
	ClearMfaState(ctx context.Context, id int64) error

	UpdateRefreshHash(ctx context.Context, id int64, hash string) error

	// SwapRefreshHash replaces oldHash with newHash and reports false when
	// the stored hash is no longer oldHash.
	SwapRefreshHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error)
}

// ResourceRepository looks up protected resources.
type ResourceRepository interface {
	GetResource(ctx context.Context, id int64) (*domain.Resource, error)
}

// GroupRepository answers group membership questions.
type GroupRepository interface {
	IsMember(ctx context.Context, groupID, principalID int64) (bool, error)
}
