package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	"github.com/aipowereddevteam/auth2026/pkg/database"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

// ResourceRepository implements repository.ResourceRepository using PostgreSQL.
type ResourceRepository struct {
	db database.DBTX
}

// NewResourceRepository creates a new PostgreSQL-backed resource repository.
func NewResourceRepository(db database.DBTX) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// GetResource retrieves a resource by id.
func (r *ResourceRepository) GetResource(ctx context.Context, id int64) (_ *domain.Resource, err error) {
	query := `
		SELECT id, name, classification, owner_group_id
		FROM resources
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetResource", query)
	defer func() { end(err) }()

	var res domain.Resource
	err = r.db.QueryRow(ctx, query, id).Scan(
		&res.ID,
		&res.Name,
		&res.Classification,
		&res.OwnerGroupID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Unavailable(storeName, err)
	}
	return &res, nil
}

// GroupRepository implements repository.GroupRepository using PostgreSQL.
type GroupRepository struct {
	db database.DBTX
}

// NewGroupRepository creates a new PostgreSQL-backed group repository.
func NewGroupRepository(db database.DBTX) *GroupRepository {
	return &GroupRepository{db: db}
}

// IsMember reports whether principalID belongs to groupID.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, principalID int64) (_ bool, err error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_id = $1 AND principal_id = $2
		)`

	ctx, end := database.TraceQuery(ctx, "IsGroupMember", query)
	defer func() { end(err) }()

	var member bool
	if err = r.db.QueryRow(ctx, query, groupID, principalID).Scan(&member); err != nil {
		return false, apperrors.Unavailable(storeName, err)
	}
	return member, nil
}
