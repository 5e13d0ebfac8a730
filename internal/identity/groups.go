// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package identity

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Reserved group names. These are seeded by migration and cannot be
// created or deleted through normal group management.
const (
	// GroupEveryone is the public group every requester, including
	// anonymous ones, implicitly belongs to.
	GroupEveryone = "everyone"

	// GroupAdministrators is the group reserved for administrators.
	GroupAdministrators = "administrators"
)

// reservedGroups is the fixed set of names the system treats specially.
var reservedGroups = map[string]struct{}{
	GroupEveryone:       {},
	GroupAdministrators: {},
}

// IsReservedGroup reports whether name is a reserved group name.
// Comparison is case-sensitive exact match.
func IsReservedGroup(name string) bool {
	_, ok := reservedGroups[name]
	return ok
}

// GuestGroupNames returns the effective group-name set for anonymous
// requesters. Guests belong to the public group and nothing else.
func GuestGroupNames() []string {
	return []string{GroupEveryone}
}

// UserGroup is a named collection of users that security rules can
// bind to.
type UserGroup struct {
	ID          ulid.ULID
	Name        string
	Description string
	Reserved    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
