// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package postgres implements the identity repositories on PostgreSQL.
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

// UserRepository implements identity.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Querier) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID.String(),
		user.Name,
		user.Role.String(),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_ALREADY_EXISTS").
				With("name", user.Name).
				Wrap(err)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("name", user.Name).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user with group memberships.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, role, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("id", id.String()).
			Wrap(err)
	}

	if err := r.loadGroups(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByName retrieves a user by name (case-sensitive) with group
// memberships.
func (r *UserRepository) GetByName(ctx context.Context, name string) (*identity.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, role, password_hash, created_at, updated_at
		FROM users
		WHERE name = $1
	`, name)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("name", name).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("name", name).
			Wrap(err)
	}

	if err := r.loadGroups(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update updates an existing user.
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $2, role = $3, password_hash = $4, updated_at = now()
		WHERE id = $1
	`,
		user.ID.String(),
		user.Name,
		user.Role.String(),
		user.PasswordHash,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// scanUser scans a user row.
func (r *UserRepository) scanUser(row pgx.Row) (*identity.User, error) {
	var user identity.User
	var idStr, roleStr string

	err := row.Scan(&idStr, &user.Name, &roleStr, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	user.Role, err = identity.ParseRole(roleStr)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// loadGroups populates the user's group memberships eagerly.
func (r *UserRepository) loadGroups(ctx context.Context, user *identity.User) error {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.name, g.description, g.reserved, g.created_at, g.updated_at
		FROM user_groups g
		JOIN user_group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.name
	`, user.ID.String())
	if err != nil {
		return oops.Code("USER_GROUPS_FAILED").
			With("id", user.ID.String()).
			Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		group, err := scanGroupRow(rows)
		if err != nil {
			return err
		}
		user.Groups = append(user.Groups, *group)
	}
	if err := rows.Err(); err != nil {
		return oops.Code("USER_GROUPS_FAILED").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}
