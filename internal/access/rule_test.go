// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package access_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"

	"github.com/cairn/cairn/internal/access"
)

func TestScopeFromBindings(t *testing.T) {
	id := ulid.Make()
	name := "alice"
	group := "editors"
	empty := ""

	tests := []struct {
		name          string
		userID        *ulid.ULID
		userName      *string
		groupName     *string
		wantKind      access.RuleScopeKind
		wantAmbiguous bool
	}{
		{
			name:     "nothing set is public",
			wantKind: access.ScopePublic,
		},
		{
			name:     "empty strings are public",
			userName: &empty, groupName: &empty,
			wantKind: access.ScopePublic,
		},
		{
			name:   "user binding",
			userID: &id, userName: &name,
			wantKind: access.ScopeUser,
		},
		{
			name:      "group binding",
			groupName: &group,
			wantKind:  access.ScopeGroup,
		},
		{
			name:   "both set resolves to group and flags ambiguity",
			userID: &id, userName: &name, groupName: &group,
			wantKind:      access.ScopeGroup,
			wantAmbiguous: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, ambiguous := access.ScopeFromBindings(tt.userID, tt.userName, tt.groupName)
			assert.Equal(t, tt.wantKind, scope.Kind)
			assert.Equal(t, tt.wantAmbiguous, ambiguous)
		})
	}
}

func TestScopeFromBindings_CarriesBindingData(t *testing.T) {
	id := ulid.Make()
	name := "alice"
	scope, _ := access.ScopeFromBindings(&id, &name, nil)
	assert.Equal(t, id, scope.UserID)
	assert.Equal(t, name, scope.UserName)

	group := "editors"
	scope, _ = access.ScopeFromBindings(nil, nil, &group)
	assert.Equal(t, group, scope.GroupName)
}

func TestDecision_Merge(t *testing.T) {
	tests := []struct {
		name string
		a, b access.Decision
		want access.Decision
	}{
		{
			name: "empty merge",
			want: access.Decision{},
		},
		{
			name: "read absorbs",
			a:    access.Decision{CanRead: true},
			b:    access.Decision{},
			want: access.Decision{CanRead: true},
		},
		{
			name: "write from either side",
			a:    access.Decision{CanRead: true},
			b:    access.Decision{CanWrite: true},
			want: access.Decision{CanRead: true, CanWrite: true},
		},
		{
			name: "merge never revokes",
			a:    access.Decision{CanRead: true, CanWrite: true},
			b:    access.Decision{},
			want: access.Decision{CanRead: true, CanWrite: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Merge(tt.b))
			// OR is commutative.
			assert.Equal(t, tt.want, tt.b.Merge(tt.a))
		})
	}
}

func TestRuleScopeKind_String(t *testing.T) {
	assert.Equal(t, "public", access.ScopePublic.String())
	assert.Equal(t, "user", access.ScopeUser.String())
	assert.Equal(t, "group", access.ScopeGroup.String())
	assert.Equal(t, "unknown(99)", access.RuleScopeKind(99).String())
}
