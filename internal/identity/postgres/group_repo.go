// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cairn/cairn/internal/identity"
)

// GroupRepository implements identity.GroupRepository using PostgreSQL.
type GroupRepository struct {
	pool Querier
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(pool Querier) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// Create stores a new group. Reserved names are rejected: they are
// seeded by migration and owned by the system.
func (r *GroupRepository) Create(ctx context.Context, group *identity.UserGroup) error {
	if identity.IsReservedGroup(group.Name) {
		return oops.Code("GROUP_NAME_RESERVED").
			With("name", group.Name).
			Errorf("group name %q is reserved", group.Name)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_groups (id, name, description, reserved, created_at, updated_at)
		VALUES ($1, $2, $3, false, $4, $5)
	`,
		group.ID.String(),
		group.Name,
		group.Description,
		group.CreatedAt,
		group.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("GROUP_ALREADY_EXISTS").
				With("name", group.Name).
				Wrap(err)
		}
		return oops.Code("GROUP_CREATE_FAILED").
			With("name", group.Name).
			Wrap(err)
	}
	return nil
}

// GetByName retrieves a group by name.
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*identity.UserGroup, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, reserved, created_at, updated_at
		FROM user_groups
		WHERE name = $1
	`, name)

	group, err := scanGroupRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GROUP_NOT_FOUND").
			With("name", name).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GROUP_GET_FAILED").
			With("name", name).
			Wrap(err)
	}
	return group, nil
}

// List returns all groups ordered by name.
func (r *GroupRepository) List(ctx context.Context) ([]identity.UserGroup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, reserved, created_at, updated_at
		FROM user_groups
		ORDER BY name
	`)
	if err != nil {
		return nil, oops.Code("GROUP_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var groups []identity.UserGroup
	for rows.Next() {
		group, err := scanGroupRow(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("GROUP_LIST_FAILED").Wrap(err)
	}
	return groups, nil
}

// AddMember adds a user to a group.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, groupID.String(), userID.String())
	if err != nil {
		return oops.Code("GROUP_MEMBER_ADD_FAILED").
			With("group_id", groupID.String()).
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// RemoveMember removes a user from a group.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_group_members
		WHERE group_id = $1 AND user_id = $2
	`, groupID.String(), userID.String())
	if err != nil {
		return oops.Code("GROUP_MEMBER_REMOVE_FAILED").
			With("group_id", groupID.String()).
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// scanGroupRow scans a group row from either QueryRow or Rows.
func scanGroupRow(row pgx.Row) (*identity.UserGroup, error) {
	var group identity.UserGroup
	var idStr string

	err := row.Scan(&idStr, &group.Name, &group.Description, &group.Reserved,
		&group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		return nil, err
	}

	group.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("GROUP_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	return &group, nil
}
