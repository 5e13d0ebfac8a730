// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package store persists security rules in PostgreSQL and implements
// the rule repository contract the access evaluator consumes.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cairn/cairn/internal/access"
)

// Querier is the subset of pgxpool.Pool the store needs. pgxmock
// satisfies it in unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RuleStore implements access.RuleRepository plus the mutation surface
// the rule-management API needs.
type RuleStore struct {
	db     Querier
	logger *slog.Logger
}

// NewRuleStore creates a RuleStore over the given connection pool.
// A nil logger falls back to slog.Default.
func NewRuleStore(db Querier, logger *slog.Logger) *RuleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleStore{db: db, logger: logger}
}

// Compile-time check that RuleStore implements the repository contract.
var _ access.RuleRepository = (*RuleStore)(nil)

const ruleColumns = `r.id, r.entity_id, r.user_id, u.name, r.group_name, r.can_read, r.can_write, r.created_at, r.updated_at`

const ruleFrom = `FROM security_rules r LEFT JOIN users u ON u.id = r.user_id`

// UserRules returns the rules explicitly bound to userName for entityID.
func (s *RuleStore) UserRules(ctx context.Context, userName string, entityID ulid.ULID) ([]access.SecurityRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		`+ruleFrom+`
		WHERE r.entity_id = $1 AND u.name = $2
		ORDER BY r.created_at, r.id
	`, entityID.String(), userName)
	if err != nil {
		return nil, oops.Code("RULE_QUERY_FAILED").
			With("query", "user rules").
			With("entity_id", entityID.String()).
			Wrap(err)
	}
	return s.collectRules(ctx, rows)
}

// GroupRules returns the rules bound to any of groupNames for
// entityID, plus public rules, which apply to every requester.
func (s *RuleStore) GroupRules(ctx context.Context, groupNames []string, entityID ulid.ULID) ([]access.SecurityRule, error) {
	if groupNames == nil {
		groupNames = []string{}
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		`+ruleFrom+`
		WHERE r.entity_id = $1
		  AND (r.group_name = ANY($2) OR (r.user_id IS NULL AND r.group_name IS NULL))
		ORDER BY r.created_at, r.id
	`, entityID.String(), groupNames)
	if err != nil {
		return nil, oops.Code("RULE_QUERY_FAILED").
			With("query", "group rules").
			With("entity_id", entityID.String()).
			Wrap(err)
	}
	return s.collectRules(ctx, rows)
}

// ListByEntity returns every rule attached to an entity.
func (s *RuleStore) ListByEntity(ctx context.Context, entityID ulid.ULID) ([]access.SecurityRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		`+ruleFrom+`
		WHERE r.entity_id = $1
		ORDER BY r.created_at, r.id
	`, entityID.String())
	if err != nil {
		return nil, oops.Code("RULE_QUERY_FAILED").
			With("query", "list by entity").
			With("entity_id", entityID.String()).
			Wrap(err)
	}
	return s.collectRules(ctx, rows)
}

// Get retrieves one rule by ID.
func (s *RuleStore) Get(ctx context.Context, id ulid.ULID) (*access.SecurityRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		`+ruleFrom+`
		WHERE r.id = $1
	`, id.String())
	if err != nil {
		return nil, oops.Code("RULE_QUERY_FAILED").
			With("query", "get rule").
			With("id", id.String()).
			Wrap(err)
	}
	rules, err := s.collectRules(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, oops.Code("RULE_NOT_FOUND").
			With("id", id.String()).
			Errorf("security rule not found")
	}
	return &rules[0], nil
}

// Create inserts a rule and its IP ranges in one transaction,
// generating a ULID for its ID.
func (s *RuleStore) Create(ctx context.Context, rule *access.SecurityRule) error {
	id := ulid.Make()

	var userID, groupName *string
	switch rule.Scope.Kind {
	case access.ScopeUser:
		v := rule.Scope.UserID.String()
		userID = &v
	case access.ScopeGroup:
		groupName = &rule.Scope.GroupName
	case access.ScopePublic:
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return oops.Code("RULE_CREATE_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO security_rules (id, entity_id, user_id, group_name, can_read, can_write)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id.String(), rule.EntityID.String(), userID, groupName, rule.CanRead, rule.CanWrite)
	if err != nil {
		return wrapRuleWriteErr(err, "RULE_CREATE_FAILED")
	}

	for i, ipr := range rule.IPRanges {
		_, err = tx.Exec(ctx, `
			INSERT INTO security_rule_ip_ranges (rule_id, position, cidr, description)
			VALUES ($1, $2, $3, $4)
		`, id.String(), i, ipr.CIDR, ipr.Description)
		if err != nil {
			return wrapRuleWriteErr(err, "RULE_CREATE_FAILED")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("RULE_CREATE_FAILED").With("operation", "commit").Wrap(err)
	}

	rule.ID = id
	return nil
}

// Delete removes a rule. IP ranges cascade via foreign key.
func (s *RuleStore) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM security_rules WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("RULE_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RULE_NOT_FOUND").With("id", id.String()).Errorf("security rule not found")
	}
	return nil
}

// collectRules scans rule rows and attaches their IP ranges.
func (s *RuleStore) collectRules(ctx context.Context, rows pgx.Rows) ([]access.SecurityRule, error) {
	defer rows.Close()

	var rules []access.SecurityRule
	var ids []string
	for rows.Next() {
		var (
			idStr, entityStr string
			userID, userName *string
			groupName        *string
			rule             access.SecurityRule
		)
		err := rows.Scan(&idStr, &entityStr, &userID, &userName, &groupName,
			&rule.CanRead, &rule.CanWrite, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return nil, oops.Code("RULE_SCAN_FAILED").Wrap(err)
		}

		rule.ID, err = ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("RULE_SCAN_FAILED").With("id", idStr).Wrap(err)
		}
		rule.EntityID, err = ulid.Parse(entityStr)
		if err != nil {
			return nil, oops.Code("RULE_SCAN_FAILED").With("entity_id", entityStr).Wrap(err)
		}

		var uid *ulid.ULID
		if userID != nil {
			parsed, err := ulid.Parse(*userID)
			if err != nil {
				return nil, oops.Code("RULE_SCAN_FAILED").With("user_id", *userID).Wrap(err)
			}
			uid = &parsed
		}

		scope, ambiguous := access.ScopeFromBindings(uid, userName, groupName)
		if ambiguous {
			// The CHECK constraint should make this impossible; rows
			// predating it resolve to group scope.
			s.logger.Warn("security rule binds both user and group",
				"rule_id", idStr,
				"entity_id", entityStr,
			)
		}
		rule.Scope = scope

		rules = append(rules, rule)
		ids = append(ids, idStr)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RULE_SCAN_FAILED").Wrap(err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	ranges, err := s.loadIPRanges(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		rules[i].IPRanges = ranges[ids[i]]
	}
	return rules, nil
}

// loadIPRanges fetches the IP restrictions for a batch of rules.
func (s *RuleStore) loadIPRanges(ctx context.Context, ruleIDs []string) (map[string][]access.IPRange, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rule_id, cidr, description
		FROM security_rule_ip_ranges
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, position
	`, ruleIDs)
	if err != nil {
		return nil, oops.Code("RULE_QUERY_FAILED").With("query", "ip ranges").Wrap(err)
	}
	defer rows.Close()

	out := make(map[string][]access.IPRange)
	for rows.Next() {
		var ruleID string
		var ipr access.IPRange
		if err := rows.Scan(&ruleID, &ipr.CIDR, &ipr.Description); err != nil {
			return nil, oops.Code("RULE_SCAN_FAILED").Wrap(err)
		}
		out[ruleID] = append(out[ruleID], ipr)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RULE_SCAN_FAILED").Wrap(err)
	}
	return out, nil
}

// wrapRuleWriteErr maps constraint violations to stable error codes.
func wrapRuleWriteErr(err error, fallback string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.CheckViolation:
			return oops.Code("RULE_INVALID_SCOPE").
				With("constraint", pgErr.ConstraintName).
				Wrap(err)
		case pgerrcode.UniqueViolation:
			return oops.Code("RULE_CONFLICT").
				With("constraint", pgErr.ConstraintName).
				Wrap(err)
		case pgerrcode.ForeignKeyViolation:
			return oops.Code("RULE_INVALID_REFERENCE").
				With("constraint", pgErr.ConstraintName).
				Wrap(err)
		}
	}
	return oops.Code(fallback).Wrap(err)
}
