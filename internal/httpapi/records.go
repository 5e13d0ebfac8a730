// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cairn/cairn/internal/catalog"
)

type recordResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract,omitempty"`
	Schema    string    `json:"schema"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CanRead   *bool `json:"can_read,omitempty"`
	CanEdit   *bool `json:"can_edit,omitempty"`
	CanDelete *bool `json:"can_delete,omitempty"`
}

type recordRequest struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Schema   string `json:"schema"`
}

func toRecordResponse(record *catalog.Record) recordResponse {
	return recordResponse{
		ID:        record.ID.String(),
		Title:     record.Title,
		Abstract:  record.Abstract,
		Schema:    record.Schema,
		OwnerID:   record.OwnerID.String(),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func toSummaryResponse(summary catalog.Summary) recordResponse {
	resp := toRecordResponse(&summary.Record)
	resp.CanRead = &summary.CanRead
	resp.CanEdit = &summary.CanEdit
	resp.CanDelete = &summary.CanDelete
	return resp
}

// recordID parses the record ID path parameter. An unparseable ID maps
// to not-found: malformed IDs cannot name an existing record.
func recordID(r *http.Request) (ulid.ULID, error) {
	raw := chi.URLParam(r, "recordID")
	id, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("RECORD_NOT_FOUND").
			With("id", raw).
			Wrap(catalog.ErrNotFound)
	}
	return id, nil
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.catalog.List(r.Context(), UserFromContext(r.Context()), ClientAddrFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]recordResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, toSummaryResponse(summary))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, decision, err := h.catalog.Get(r.Context(), UserFromContext(r.Context()), id, ClientAddrFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := toRecordResponse(record)
	resp.CanRead = &decision.CanRead
	canWrite := decision.CanWrite && !UserFromContext(r.Context()).IsGuest()
	resp.CanEdit = &canWrite
	resp.CanDelete = &canWrite
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	record := &catalog.Record{
		Title:    req.Title,
		Abstract: req.Abstract,
		Schema:   req.Schema,
	}
	if err := h.catalog.Create(r.Context(), UserFromContext(r.Context()), record); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	record := &catalog.Record{
		ID:       id,
		Title:    req.Title,
		Abstract: req.Abstract,
		Schema:   req.Schema,
	}
	if err := h.catalog.Update(r.Context(), UserFromContext(r.Context()), record, ClientAddrFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.catalog.Delete(r.Context(), UserFromContext(r.Context()), id, ClientAddrFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}
