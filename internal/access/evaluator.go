// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package access implements Cairn's security-rule evaluation engine:
// the decision, for an authenticated user (or none) and one protected
// entity, whether read and/or write access is granted.
//
// Evaluation is a pure function of the requester identity, the rules
// the repository returns, and the requester address. There is no
// retained state, no caching of decisions, and no explicit-deny rule
// kind: absence of a matching grant is the only way to deny.
package access

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cairn/cairn/internal/identity"
)

var tracer = otel.Tracer("cairn/access")

// Evaluator computes effective access decisions from security rules.
// It is stateless and safe for concurrent use.
type Evaluator struct {
	rules  RuleRepository
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator over the given rule repository.
// A nil logger falls back to slog.Default.
func NewEvaluator(rules RuleRepository, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{rules: rules, logger: logger}
}

// Evaluate computes the (CanRead, CanWrite) pair for one requester and
// one protected entity.
//
// A nil user is an anonymous guest: it sees only rules reachable
// through the public group and is barred from write grants. A user
// with the admin role bypasses rule evaluation entirely. Repository
// failures propagate as errors and are never folded into a deny.
func (e *Evaluator) Evaluate(ctx context.Context, user *identity.User, entityID ulid.ULID, remoteAddr netip.Addr) (d Decision, err error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "access.Evaluate",
		trace.WithAttributes(
			attribute.String("access.subject", subjectName(user)),
			attribute.String("access.entity_id", entityID.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Bool("access.can_read", d.CanRead),
				attribute.Bool("access.can_write", d.CanWrite),
			)
		}
		span.End()
		recordEvaluation(time.Since(start), d, err, user.IsAdmin())
	}()

	// Administrators bypass rule evaluation unconditionally.
	if user.IsAdmin() {
		return Decision{CanRead: true, CanWrite: true}, nil
	}

	groupRules, userRules, err := e.fetchRules(ctx, user, entityID)
	if err != nil {
		return Decision{}, err
	}

	guest := user.IsGuest()
	d = e.groupPass(groupRules, guest, remoteAddr, entityID)
	d = d.Merge(e.userPass(userRules, user, remoteAddr, entityID))

	// The guest bar is structural in both passes; this is the invariant
	// restated, not a second enforcement point.
	if guest && d.CanWrite {
		d.CanWrite = false
	}

	return d, nil
}

// fetchRules loads the two independent rule lists. The queries do not
// depend on each other, so they are issued concurrently; the final
// combination is a commutative OR and ordering is irrelevant.
func (e *Evaluator) fetchRules(ctx context.Context, user *identity.User, entityID ulid.ULID) (groupRules, userRules []SecurityRule, err error) {
	g, ctx := errgroup.WithContext(ctx)

	// Repository failures propagate as errors, never as a deny.
	// oops resolves Code() to the deepest code in the wrap chain, so a
	// coded store error keeps its own code; RULE_REPO_FAILED surfaces
	// only for uncoded causes.
	g.Go(func() error {
		rules, err := e.rules.GroupRules(ctx, user.GroupNames(), entityID)
		if err != nil {
			return oops.
				Code("RULE_REPO_FAILED").
				With("query", "group rules").
				With("entity_id", entityID.String()).
				Wrap(err)
		}
		groupRules = rules
		return nil
	})

	// Anonymous requesters have no user name to query by.
	if user != nil {
		g.Go(func() error {
			rules, err := e.rules.UserRules(ctx, user.Name, entityID)
			if err != nil {
				return oops.
					Code("RULE_REPO_FAILED").
					With("query", "user rules").
					With("entity_id", entityID.String()).
					Wrap(err)
			}
			userRules = rules
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return groupRules, userRules, nil
}

// groupPass folds the group-scoped rule list into a decision. Public
// rules apply to every requester and are admitted here too; a
// user-scoped rule in this list is repository leakage and is skipped.
func (e *Evaluator) groupPass(rules []SecurityRule, guest bool, remoteAddr netip.Addr, entityID ulid.ULID) Decision {
	var d Decision
	for i := range rules {
		rule := &rules[i]
		if rule.Scope.Kind == ScopeUser {
			e.warnScopeLeak(rule, "group", entityID)
			continue
		}
		d = d.Merge(e.applyRule(rule, guest, remoteAddr))
	}
	return d
}

// userPass folds the user-scoped rule list into a decision. Only rules
// bound to this exact user apply; group or public rules that leaked
// into the user-scoped query result are skipped.
func (e *Evaluator) userPass(rules []SecurityRule, user *identity.User, remoteAddr netip.Addr, entityID ulid.ULID) Decision {
	var d Decision
	if user == nil {
		return d
	}
	for i := range rules {
		rule := &rules[i]
		if rule.Scope.Kind != ScopeUser {
			e.warnScopeLeak(rule, "user", entityID)
			continue
		}
		if rule.Scope.UserID != user.ID {
			continue
		}
		d = d.Merge(e.applyRule(rule, user.IsGuest(), remoteAddr))
	}
	return d
}

// applyRule turns one rule into the grants it contributes, honoring
// the rule's IP restriction and the guest write bar.
func (e *Evaluator) applyRule(rule *SecurityRule, guest bool, remoteAddr netip.Addr) Decision {
	res := rule.AppliesFrom(remoteAddr)
	for _, cidr := range res.Malformed {
		recordMalformedRule("bad_cidr")
		e.logger.Warn("skipping malformed CIDR on security rule",
			"rule_id", rule.ID.String(),
			"cidr", cidr,
		)
	}
	if !res.Matched {
		return Decision{}
	}

	var d Decision
	if rule.CanWrite && !guest {
		// A write grant implies read: an editor can always see what
		// it may change.
		d.CanWrite = true
		d.CanRead = true
	}
	if rule.CanRead {
		d.CanRead = true
	}
	return d
}

// warnScopeLeak logs a rule that showed up in the wrong repository
// query. The repository is expected to segregate scopes; the evaluator
// does not trust that blindly.
func (e *Evaluator) warnScopeLeak(rule *SecurityRule, pass string, entityID ulid.ULID) {
	recordMalformedRule("scope_leak")
	e.logger.Warn("security rule leaked into wrong scope query",
		"rule_id", rule.ID.String(),
		"rule_scope", rule.Scope.Kind.String(),
		"pass", pass,
		"entity_id", entityID.String(),
	)
}

// subjectName names the requester for tracing and audit purposes.
func subjectName(user *identity.User) string {
	if user == nil {
		return "anonymous"
	}
	return user.Name
}
