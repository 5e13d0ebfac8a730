// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package identity

import (
	"fmt"

	"github.com/samber/oops"
)

// Role classifies a user for access evaluation.
// The zero value is RoleGuest so an uninitialized role never grants
// more than anonymous access.
type Role int

// Role constants, ordered from least to most privileged.
const (
	RoleGuest Role = iota // guest
	RoleUser              // user
	RoleAdmin             // admin
)

var roleStrings = [...]string{
	"guest",
	"user",
	"admin",
}

func (r Role) String() string {
	if r >= 0 && int(r) < len(roleStrings) {
		return roleStrings[r]
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// ParseRole converts a stored role string to a Role.
// Unknown strings are an error rather than a silent guest downgrade so
// that corrupted role data surfaces at the load boundary.
func ParseRole(s string) (Role, error) {
	switch s {
	case "guest":
		return RoleGuest, nil
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleGuest, oops.
			Code("IDENTITY_INVALID_ROLE").
			With("role", s).
			Errorf("unknown role %q", s)
	}
}
