// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package identity

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
)

// usernameRegex matches usernames that start with a letter and contain
// only letters, numbers, underscores, dots, and hyphens.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)

// User is an authenticated account. A nil *User anywhere in the access
// path means an anonymous (guest) requester.
type User struct {
	ID           ulid.ULID
	Name         string
	Role         Role
	PasswordHash string
	Groups       []UserGroup
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user has the administrator role.
// A nil user is never an administrator.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsGuest reports whether the user is anonymous or carries the guest
// role. Guests are barred from write grants regardless of rule content.
func (u *User) IsGuest() bool {
	return u == nil || u.Role == RoleGuest
}

// GroupNames returns the names of all groups the user belongs to.
// Rule repositories are queried by group *name*, never by group object,
// so membership checks downstream are name-based by construction.
// Every requester belongs to the public group, so its name is always
// included whether or not a membership row exists. A nil user yields
// the guest group set.
func (u *User) GroupNames() []string {
	if u == nil {
		return GuestGroupNames()
	}
	names := make([]string, 0, len(u.Groups)+1)
	everyone := false
	for _, g := range u.Groups {
		if g.Name == GroupEveryone {
			everyone = true
		}
		names = append(names, g.Name)
	}
	if !everyone {
		names = append(names, GroupEveryone)
	}
	return names
}

// Anonymous returns the canonical guest identity used when a request
// carries no valid session. It is a fresh value each call; callers may
// mutate their copy freely.
func Anonymous() *User {
	return &User{
		Name: "anonymous",
		Role: RoleGuest,
		Groups: []UserGroup{
			{Name: GroupEveryone, Reserved: true},
		},
	}
}

// ValidateUsername validates a username against account rules.
func ValidateUsername(name string) error {
	if name == "" {
		return oops.Code("IDENTITY_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(name) < MinUsernameLength {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(name) > MaxUsernameLength {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(name) {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, dots, hyphens, and underscores")
	}
	return nil
}

// UserRepository manages user persistence. Implementations load group
// memberships eagerly; the access engine never goes back to the store
// for them.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user with group memberships.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByName retrieves a user by name (case-sensitive) with group
	// memberships.
	GetByName(ctx context.Context, name string) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error
}

// GroupRepository manages user-group persistence.
type GroupRepository interface {
	// Create stores a new group. Reserved names are rejected.
	Create(ctx context.Context, group *UserGroup) error

	// GetByName retrieves a group by name.
	GetByName(ctx context.Context, name string) (*UserGroup, error)

	// List returns all groups ordered by name.
	List(ctx context.Context) ([]UserGroup, error)

	// AddMember adds a user to a group.
	AddMember(ctx context.Context, groupID, userID ulid.ULID) error

	// RemoveMember removes a user from a group.
	RemoveMember(ctx context.Context, groupID, userID ulid.ULID) error
}
