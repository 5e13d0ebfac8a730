// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package access

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// RuleRepository supplies the security rules scoped to a user name or a
// set of group names for one protected entity. Both queries may
// legitimately return an empty list: no rules means no implicit grant.
// Scoping results to the given entity is the repository's job; the
// evaluator only re-checks the user/group binding defensively.
type RuleRepository interface {
	// UserRules returns the rules explicitly bound to this user name
	// for this entity.
	UserRules(ctx context.Context, userName string, entityID ulid.ULID) ([]SecurityRule, error)

	// GroupRules returns the rules bound to any of these group names
	// for this entity, plus public rules (no binding at all), which
	// apply to every requester.
	GroupRules(ctx context.Context, groupNames []string, entityID ulid.ULID) ([]SecurityRule, error)
}
