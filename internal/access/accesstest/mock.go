// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package accesstest provides test helpers for the access engine.
package accesstest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/cairn/cairn/internal/access"
)

// MapRepository is an access.RuleRepository backed by in-memory rule
// lists, keyed by entity. Safe for concurrent use.
type MapRepository struct {
	mu    sync.RWMutex
	rules map[ulid.ULID][]access.SecurityRule

	// UserErr and GroupErr, when set, are returned by the
	// corresponding query to simulate repository failures.
	UserErr  error
	GroupErr error
}

// NewMapRepository creates an empty MapRepository.
func NewMapRepository() *MapRepository {
	return &MapRepository{rules: make(map[ulid.ULID][]access.SecurityRule)}
}

// Add registers rules for an entity.
func (r *MapRepository) Add(entityID ulid.ULID, rules ...access.SecurityRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[entityID] = append(r.rules[entityID], rules...)
}

// UserRules returns the rules bound to userName for entityID.
func (r *MapRepository) UserRules(_ context.Context, userName string, entityID ulid.ULID) ([]access.SecurityRule, error) {
	if r.UserErr != nil {
		return nil, r.UserErr
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []access.SecurityRule
	for _, rule := range r.rules[entityID] {
		if rule.Scope.Kind == access.ScopeUser && rule.Scope.UserName == userName {
			out = append(out, rule)
		}
	}
	return out, nil
}

// GroupRules returns the rules bound to any of groupNames for
// entityID, plus public rules.
func (r *MapRepository) GroupRules(_ context.Context, groupNames []string, entityID ulid.ULID) ([]access.SecurityRule, error) {
	if r.GroupErr != nil {
		return nil, r.GroupErr
	}
	names := make(map[string]struct{}, len(groupNames))
	for _, n := range groupNames {
		names[n] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []access.SecurityRule
	for _, rule := range r.rules[entityID] {
		switch rule.Scope.Kind {
		case access.ScopePublic:
			out = append(out, rule)
		case access.ScopeGroup:
			if _, ok := names[rule.Scope.GroupName]; ok {
				out = append(out, rule)
			}
		case access.ScopeUser:
			// user rules are not returned by the group query
		}
	}
	return out, nil
}

// RawRepository returns fixed lists regardless of query arguments.
// It exists to exercise the evaluator's defensive scope filtering with
// deliberately mis-segregated results.
type RawRepository struct {
	User  []access.SecurityRule
	Group []access.SecurityRule
}

// UserRules returns the fixed user-scoped list.
func (r *RawRepository) UserRules(_ context.Context, _ string, _ ulid.ULID) ([]access.SecurityRule, error) {
	return r.User, nil
}

// GroupRules returns the fixed group-scoped list.
func (r *RawRepository) GroupRules(_ context.Context, _ []string, _ ulid.ULID) ([]access.SecurityRule, error) {
	return r.Group, nil
}
