// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package access

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetrics_MetricsRegistered verifies all metric descriptors are registered.
func TestMetrics_MetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}

	expectedMetrics := []string{
		"cairn_access_evaluate_duration_seconds",
		"cairn_access_decisions_total",
		"cairn_access_malformed_rules_total",
	}

	for _, name := range expectedMetrics {
		assert.True(t, registered[name], "metric %q should be registered", name)
	}
}

// TestMetrics_AmbiguousScopeCounted verifies that resolving a row binding
// both a user and a group counts a malformed rule.
func TestMetrics_AmbiguousScopeCounted(t *testing.T) {
	counter := malformedRules.WithLabelValues("ambiguous_scope")
	initialCount := testutil.ToFloat64(counter)

	id := ulid.Make()
	name := "alice"
	group := "editors"
	_, ambiguous := ScopeFromBindings(&id, &name, &group)
	require.True(t, ambiguous)

	assert.Equal(t, initialCount+1, testutil.ToFloat64(counter))
}

// TestMetrics_UnambiguousScopeNotCounted verifies clean bindings leave the
// malformed-rule counter untouched.
func TestMetrics_UnambiguousScopeNotCounted(t *testing.T) {
	counter := malformedRules.WithLabelValues("ambiguous_scope")
	initialCount := testutil.ToFloat64(counter)

	group := "editors"
	_, ambiguous := ScopeFromBindings(nil, nil, &group)
	require.False(t, ambiguous)

	assert.Equal(t, initialCount, testutil.ToFloat64(counter))
}
