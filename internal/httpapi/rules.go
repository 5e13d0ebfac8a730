// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cairn/cairn/internal/access"
)

type ipRangeBody struct {
	CIDR        string `json:"cidr"`
	Description string `json:"description,omitempty"`
}

type ruleResponse struct {
	ID       string        `json:"id"`
	Scope    string        `json:"scope"`
	UserName string        `json:"user_name,omitempty"`
	Group    string        `json:"group,omitempty"`
	CanRead  bool          `json:"can_read"`
	CanWrite bool          `json:"can_write"`
	IPRanges []ipRangeBody `json:"ip_ranges,omitempty"`
}

// ruleRequest binds a new rule to at most one of user_name / group.
// Leaving both empty creates a public rule.
type ruleRequest struct {
	UserName string        `json:"user_name"`
	Group    string        `json:"group"`
	CanRead  bool          `json:"can_read"`
	CanWrite bool          `json:"can_write"`
	IPRanges []ipRangeBody `json:"ip_ranges"`
}

func toRuleResponse(rule access.SecurityRule) ruleResponse {
	resp := ruleResponse{
		ID:       rule.ID.String(),
		Scope:    rule.Scope.Kind.String(),
		CanRead:  rule.CanRead,
		CanWrite: rule.CanWrite,
	}
	switch rule.Scope.Kind {
	case access.ScopeUser:
		resp.UserName = rule.Scope.UserName
	case access.ScopeGroup:
		resp.Group = rule.Scope.GroupName
	case access.ScopePublic:
	}
	for _, ipr := range rule.IPRanges {
		resp.IPRanges = append(resp.IPRanges, ipRangeBody{CIDR: ipr.CIDR, Description: ipr.Description})
	}
	return resp
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rules, err := h.catalog.Rules(r.Context(), UserFromContext(r.Context()), id, ClientAddrFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAddRule(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	rule, err := h.buildRule(r, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.catalog.AddRule(r.Context(), UserFromContext(r.Context()), rule, ClientAddrFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toRuleResponse(*rule))
}

// buildRule resolves the request's scope bindings into a SecurityRule.
// A user-scoped rule needs the user to exist so the rule's foreign key
// can point at it.
func (h *Handler) buildRule(r *http.Request, entityID ulid.ULID, req ruleRequest) (*access.SecurityRule, error) {
	if req.UserName != "" && req.Group != "" {
		return nil, oops.Code("RULE_INVALID_SCOPE").
			Errorf("rule cannot name both a user and a group")
	}

	rule := &access.SecurityRule{
		EntityID: entityID,
		Scope:    access.PublicScope(),
		CanRead:  req.CanRead,
		CanWrite: req.CanWrite,
	}

	switch {
	case req.UserName != "":
		user, err := h.users.GetByName(r.Context(), req.UserName)
		if err != nil {
			return nil, err
		}
		rule.Scope = access.UserScope(user.ID, user.Name)
	case req.Group != "":
		rule.Scope = access.GroupScope(req.Group)
	}

	for _, ipr := range req.IPRanges {
		rule.IPRanges = append(rule.IPRanges, access.IPRange{CIDR: ipr.CIDR, Description: ipr.Description})
	}
	return rule, nil
}

func (h *Handler) handleRemoveRule(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rawRuleID := chi.URLParam(r, "ruleID")
	ruleID, err := ulid.Parse(rawRuleID)
	if err != nil {
		h.writeError(w, r, oops.Code("RULE_NOT_FOUND").
			With("id", rawRuleID).
			Errorf("rule not found"))
		return
	}

	if err := h.catalog.RemoveRule(r.Context(), UserFromContext(r.Context()), id, ruleID, ClientAddrFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}
