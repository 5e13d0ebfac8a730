// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package catalog holds the metadata records Cairn protects and the
// service facade that gates every read and write on the access engine.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is a catalog metadata record: the protected entity security
// rules attach to.
type Record struct {
	ID        ulid.ULID
	Title     string
	Abstract  string
	Schema    string
	OwnerID   ulid.ULID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields a stored record must carry.
func (r *Record) Validate() error {
	if r.Title == "" {
		return oops.Code("RECORD_INVALID").Errorf("record title cannot be empty")
	}
	if r.Schema == "" {
		return oops.Code("RECORD_INVALID").Errorf("record schema cannot be empty")
	}
	return nil
}

// Summary is the listing form of a record, annotated with the
// requester's effective access.
type Summary struct {
	Record
	CanRead   bool
	CanEdit   bool
	CanDelete bool
}

// RecordStore manages record persistence.
type RecordStore interface {
	// Create stores a new record.
	Create(ctx context.Context, record *Record) error

	// GetByID retrieves a record.
	GetByID(ctx context.Context, id ulid.ULID) (*Record, error)

	// List returns all records ordered by title.
	List(ctx context.Context) ([]Record, error)

	// Update updates an existing record.
	Update(ctx context.Context, record *Record) error

	// Delete removes a record. Attached security rules cascade.
	Delete(ctx context.Context, id ulid.ULID) error
}
