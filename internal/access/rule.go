// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package access

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cairn/cairn/internal/access/ipmatch"
)

// RuleScopeKind discriminates what a security rule binds to.
type RuleScopeKind int

// Scope kinds. The zero value is ScopePublic: a rule that names neither
// a user nor a group applies to any requester, including anonymous ones.
const (
	ScopePublic RuleScopeKind = iota // public
	ScopeUser                        // user
	ScopeGroup                       // group
)

var scopeKindStrings = [...]string{
	"public",
	"user",
	"group",
}

func (k RuleScopeKind) String() string {
	if k >= 0 && int(k) < len(scopeKindStrings) {
		return scopeKindStrings[k]
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// RuleScope is the tagged binding of a security rule: exactly one of
// {a specific user, a specific group, nobody in particular}. Modeling
// the binding as a variant instead of two nullable references makes an
// illegal user-and-group rule unrepresentable in the domain model.
type RuleScope struct {
	Kind RuleScopeKind

	// UserID and UserName are set only when Kind == ScopeUser.
	UserID   ulid.ULID
	UserName string

	// GroupName is set only when Kind == ScopeGroup.
	GroupName string
}

// PublicScope returns the scope of a rule that applies to any requester.
func PublicScope() RuleScope {
	return RuleScope{Kind: ScopePublic}
}

// UserScope returns a scope binding a rule to a single user.
func UserScope(id ulid.ULID, name string) RuleScope {
	return RuleScope{Kind: ScopeUser, UserID: id, UserName: name}
}

// GroupScope returns a scope binding a rule to a group name.
func GroupScope(name string) RuleScope {
	return RuleScope{Kind: ScopeGroup, GroupName: name}
}

// ScopeFromBindings maps legacy nullable user/group bindings (as stored
// rows carry them) onto a RuleScope. A row that illegally names both a
// user and a group is treated as group-scoped, following
// first-matching-field precedence; ambiguous reports that case so the
// caller can raise a data-integrity warning instead of crashing.
func ScopeFromBindings(userID *ulid.ULID, userName, groupName *string) (scope RuleScope, ambiguous bool) {
	hasUser := userID != nil || (userName != nil && *userName != "")
	hasGroup := groupName != nil && *groupName != ""

	switch {
	case hasGroup:
		scope = GroupScope(*groupName)
		ambiguous = hasUser
		if ambiguous {
			recordMalformedRule("ambiguous_scope")
		}
	case hasUser:
		var id ulid.ULID
		if userID != nil {
			id = *userID
		}
		var name string
		if userName != nil {
			name = *userName
		}
		scope = UserScope(id, name)
	default:
		scope = PublicScope()
	}
	return scope, ambiguous
}

// IPRange restricts a rule grant to requests originating from a CIDR block.
type IPRange struct {
	CIDR        string
	Description string
}

// SecurityRule is the atomic access-control record: for one protected
// entity, a scope plus the read/write grants it carries, optionally
// restricted to a list of source IP ranges.
type SecurityRule struct {
	ID        ulid.ULID
	EntityID  ulid.ULID
	Scope     RuleScope
	CanRead   bool
	CanWrite  bool
	IPRanges  []IPRange
	CreatedAt time.Time
	UpdatedAt time.Time
}

// cidrs extracts the CIDR strings of the rule's IP ranges.
func (r *SecurityRule) cidrs() []string {
	if len(r.IPRanges) == 0 {
		return nil
	}
	out := make([]string, len(r.IPRanges))
	for i, ipr := range r.IPRanges {
		out[i] = ipr.CIDR
	}
	return out
}

// AppliesFrom reports whether the rule's IP restriction admits a
// request from addr. A rule without IP ranges applies unconditionally.
func (r *SecurityRule) AppliesFrom(addr netip.Addr) ipmatch.Result {
	return ipmatch.Match(addr, r.cidrs())
}

// Decision is the effective access computed for one requester and one
// protected entity.
type Decision struct {
	CanRead  bool
	CanWrite bool
}

// Merge combines two decisions with a monotonic OR: a grant, once
// made, is never revoked by merging in another decision.
func (d Decision) Merge(other Decision) Decision {
	return Decision{
		CanRead:  d.CanRead || other.CanRead,
		CanWrite: d.CanWrite || other.CanWrite,
	}
}

// Grants reports whether the decision grants anything at all.
func (d Decision) Grants() bool {
	return d.CanRead || d.CanWrite
}
