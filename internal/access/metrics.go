// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package access

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for security-rule evaluation.
var (
	// evaluateDuration tracks the latency of Evaluate() calls.
	evaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cairn_access_evaluate_duration_seconds",
		Help:    "Histogram of access evaluation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// decisions counts evaluations by outcome.
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cairn_access_decisions_total",
		Help: "Total number of access evaluations by outcome",
	}, []string{"outcome"})

	// malformedRules counts defective rule data encountered during
	// evaluation (skipped, never fatal).
	malformedRules = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cairn_access_malformed_rules_total",
		Help: "Total number of malformed security rule entries skipped during evaluation",
	}, []string{"kind"})
)

// recordEvaluation records metrics for a completed evaluation.
func recordEvaluation(duration time.Duration, d Decision, err error, adminBypass bool) {
	evaluateDuration.Observe(duration.Seconds())

	switch {
	case err != nil:
		decisions.WithLabelValues("error").Inc()
	case adminBypass:
		decisions.WithLabelValues("admin_bypass").Inc()
	case d.CanRead && d.CanWrite:
		decisions.WithLabelValues("granted_rw").Inc()
	case d.CanRead:
		decisions.WithLabelValues("granted_ro").Inc()
	case d.CanWrite:
		decisions.WithLabelValues("granted_wo").Inc()
	default:
		decisions.WithLabelValues("denied").Inc()
	}
}

// recordMalformedRule counts one piece of defective rule data.
// kind is one of "bad_cidr", "scope_leak", "ambiguous_scope".
func recordMalformedRule(kind string) {
	malformedRules.WithLabelValues(kind).Inc()
}
