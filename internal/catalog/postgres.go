// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Querier is the subset of pgxpool.Pool the store needs. pgxmock
// satisfies it in unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements RecordStore on PostgreSQL.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore creates a PostgresStore over the given connection pool.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ RecordStore = (*PostgresStore)(nil)

const recordColumns = `id, title, abstract, schema_name, owner_id, created_at, updated_at`

// Create stores a new record.
func (s *PostgresStore) Create(ctx context.Context, record *Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		record.ID.String(),
		record.Title,
		record.Abstract,
		record.Schema,
		record.OwnerID.String(),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return oops.Code("RECORD_CONFLICT").
					With("id", record.ID.String()).
					Wrap(err)
			case pgerrcode.ForeignKeyViolation:
				return oops.Code("RECORD_INVALID_OWNER").
					With("owner_id", record.OwnerID.String()).
					Wrap(err)
			}
		}
		return oops.Code("RECORD_CREATE_FAILED").
			With("id", record.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a record.
func (s *PostgresStore) GetByID(ctx context.Context, id ulid.ULID) (*Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE id = $1
	`, id.String())

	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RECORD_NOT_FOUND").
			With("id", id.String()).
			Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RECORD_GET_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return record, nil
}

// List returns all records ordered by title.
func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		ORDER BY title, id
	`)
	if err != nil {
		return nil, oops.Code("RECORD_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, oops.Code("RECORD_LIST_FAILED").Wrap(err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RECORD_LIST_FAILED").Wrap(err)
	}
	return records, nil
}

// Update updates an existing record.
func (s *PostgresStore) Update(ctx context.Context, record *Record) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE records
		SET title = $2, abstract = $3, schema_name = $4, updated_at = $5
		WHERE id = $1
	`,
		record.ID.String(),
		record.Title,
		record.Abstract,
		record.Schema,
		record.UpdatedAt,
	)
	if err != nil {
		return oops.Code("RECORD_UPDATE_FAILED").
			With("id", record.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RECORD_NOT_FOUND").
			With("id", record.ID.String()).
			Wrap(ErrNotFound)
	}
	return nil
}

// Delete removes a record. Security rules referencing it are removed
// by the foreign-key cascade on security_rules.entity_id.
func (s *PostgresStore) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM records
		WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("RECORD_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RECORD_NOT_FOUND").
			With("id", id.String()).
			Wrap(ErrNotFound)
	}
	return nil
}

// scanRecord scans a record row.
func scanRecord(row pgx.Row) (*Record, error) {
	var record Record
	var idStr, ownerStr string

	err := row.Scan(&idStr, &record.Title, &record.Abstract, &record.Schema,
		&ownerStr, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}

	record.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RECORD_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	record.OwnerID, err = ulid.Parse(ownerStr)
	if err != nil {
		return nil, oops.Code("RECORD_SCAN_FAILED").With("id", idStr).Wrap(err)
	}
	return &record, nil
}
