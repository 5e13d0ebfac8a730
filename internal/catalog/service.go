// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package catalog

import (
	"context"
	"net/netip"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cairn/cairn/internal/access"
	"github.com/cairn/cairn/internal/access/audit"
	"github.com/cairn/cairn/internal/identity"
)

// RuleManager is the mutation surface of the rule store the facade
// needs for rule administration and owner-rule bootstrapping.
type RuleManager interface {
	Create(ctx context.Context, rule *access.SecurityRule) error
	Delete(ctx context.Context, id ulid.ULID) error
	ListByEntity(ctx context.Context, entityID ulid.ULID) ([]access.SecurityRule, error)
}

// Service is the catalog facade. Every operation evaluates access
// before touching record content: a failed read check surfaces as
// ACCESS_DENIED, never as partial or redacted data.
type Service struct {
	records   RecordStore
	rules     RuleManager
	evaluator *access.Evaluator
	audit     *audit.Logger
}

// NewService creates the catalog facade.
func NewService(records RecordStore, rules RuleManager, evaluator *access.Evaluator, auditLogger *audit.Logger) *Service {
	return &Service{
		records:   records,
		rules:     rules,
		evaluator: evaluator,
		audit:     auditLogger,
	}
}

// Get returns a record in full form, or ACCESS_DENIED when the
// requester may not read it. A missing record is RECORD_NOT_FOUND:
// the deny and the not-found cases are never conflated.
func (s *Service) Get(ctx context.Context, user *identity.User, id ulid.ULID, addr netip.Addr) (*Record, access.Decision, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, access.Decision{}, err
	}

	decision, err := s.evaluate(ctx, user, id, addr)
	if err != nil {
		return nil, access.Decision{}, err
	}
	if !decision.CanRead {
		return nil, decision, s.denied(user, id)
	}
	return record, decision, nil
}

// List returns the records the requester may read, each annotated with
// its effective flags. Guests always receive CanEdit=CanDelete=false,
// independent of rule content.
func (s *Service) List(ctx context.Context, user *identity.User, addr netip.Addr) ([]Summary, error) {
	records, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(records))
	for i := range records {
		record := records[i]
		decision, err := s.evaluate(ctx, user, record.ID, addr)
		if err != nil {
			return nil, err
		}
		if !decision.CanRead {
			continue
		}

		canWrite := decision.CanWrite
		if user.IsGuest() {
			// Hard floor: the evaluator already bars guest writes, but
			// the listing annotation never trusts that alone.
			canWrite = false
		}
		summaries = append(summaries, Summary{
			Record:    record,
			CanRead:   true,
			CanEdit:   canWrite,
			CanDelete: canWrite,
		})
	}
	return summaries, nil
}

// Create stores a new record and grants its creator full rights
// through a user-scoped rule. Guests cannot create records.
func (s *Service) Create(ctx context.Context, user *identity.User, record *Record) error {
	if user.IsGuest() {
		return oops.Code("ACCESS_DENIED").
			Errorf("guests cannot create records")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	record.ID = ulid.Make()
	record.OwnerID = user.ID
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.records.Create(ctx, record); err != nil {
		return err
	}

	ownerRule := &access.SecurityRule{
		EntityID: record.ID,
		Scope:    access.UserScope(user.ID, user.Name),
		CanRead:  true,
		CanWrite: true,
	}
	if err := s.rules.Create(ctx, ownerRule); err != nil {
		return oops.Code("RECORD_OWNER_RULE_FAILED").
			With("record_id", record.ID.String()).
			Wrap(err)
	}
	return nil
}

// Update modifies a record; the requester needs a write grant.
func (s *Service) Update(ctx context.Context, user *identity.User, record *Record, addr netip.Addr) error {
	if err := record.Validate(); err != nil {
		return err
	}

	decision, err := s.evaluate(ctx, user, record.ID, addr)
	if err != nil {
		return err
	}
	if !decision.CanWrite {
		return s.denied(user, record.ID)
	}

	record.UpdatedAt = time.Now()
	return s.records.Update(ctx, record)
}

// Delete removes a record; the requester needs a write grant.
// Attached security rules are removed by cascade.
func (s *Service) Delete(ctx context.Context, user *identity.User, id ulid.ULID, addr netip.Addr) error {
	decision, err := s.evaluate(ctx, user, id, addr)
	if err != nil {
		return err
	}
	if !decision.CanWrite {
		return s.denied(user, id)
	}
	return s.records.Delete(ctx, id)
}

// Rules returns the security rules attached to a record. Only
// administrators and requesters holding a write grant may inspect them.
func (s *Service) Rules(ctx context.Context, user *identity.User, id ulid.ULID, addr netip.Addr) ([]access.SecurityRule, error) {
	if err := s.requireWrite(ctx, user, id, addr); err != nil {
		return nil, err
	}
	return s.rules.ListByEntity(ctx, id)
}

// AddRule attaches a security rule to a record.
func (s *Service) AddRule(ctx context.Context, user *identity.User, rule *access.SecurityRule, addr netip.Addr) error {
	if err := s.requireWrite(ctx, user, rule.EntityID, addr); err != nil {
		return err
	}
	return s.rules.Create(ctx, rule)
}

// RemoveRule detaches a security rule from a record.
func (s *Service) RemoveRule(ctx context.Context, user *identity.User, entityID, ruleID ulid.ULID, addr netip.Addr) error {
	if err := s.requireWrite(ctx, user, entityID, addr); err != nil {
		return err
	}
	return s.rules.Delete(ctx, ruleID)
}

// requireWrite evaluates and demands a write grant.
func (s *Service) requireWrite(ctx context.Context, user *identity.User, entityID ulid.ULID, addr netip.Addr) error {
	decision, err := s.evaluate(ctx, user, entityID, addr)
	if err != nil {
		return err
	}
	if !decision.CanWrite {
		return s.denied(user, entityID)
	}
	return nil
}

// evaluate runs the access engine and records the decision for audit.
func (s *Service) evaluate(ctx context.Context, user *identity.User, entityID ulid.ULID, addr netip.Addr) (access.Decision, error) {
	start := time.Now()
	decision, err := s.evaluator.Evaluate(ctx, user, entityID, addr)
	if err != nil {
		return access.Decision{}, err
	}

	if s.audit != nil {
		entry := audit.Entry{
			Subject:    subjectName(user),
			Role:       roleName(user),
			EntityID:   entityID.String(),
			CanRead:    decision.CanRead,
			CanWrite:   decision.CanWrite,
			DurationUS: time.Since(start).Microseconds(),
			Timestamp:  time.Now(),
		}
		if addr.IsValid() {
			entry.RemoteAddr = addr.String()
		}
		s.audit.Log(entry)
	}
	return decision, nil
}

// denied builds the uniform access-denied error.
func (s *Service) denied(user *identity.User, entityID ulid.ULID) error {
	return oops.Code("ACCESS_DENIED").
		With("subject", subjectName(user)).
		With("entity_id", entityID.String()).
		Errorf("access denied")
}

func subjectName(user *identity.User) string {
	if user == nil {
		return "anonymous"
	}
	return user.Name
}

func roleName(user *identity.User) string {
	if user == nil {
		return identity.RoleGuest.String()
	}
	return user.Role.String()
}
