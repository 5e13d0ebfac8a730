// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/cairn/cairn/pkg/errutil"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errutil.LogError(h.logger, "response encoding failed", err)
	}
}

// writeError maps a service error to an HTTP status. Unmapped errors
// are logged with their full context and answered with a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := ""
	if oopsErr, ok := oops.AsOops(err); ok {
		// Code() resolves to the most deeply nested code in the wrap
		// chain, so store-level codes survive facade wrapping.
		code, _ = oopsErr.Code().(string)
	}

	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		errutil.LogError(h.logger, "request failed", err)
		h.writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}

	h.writeJSON(w, status, errorBody{Error: publicMessage(status, err), Code: code})
}

func statusForCode(code string) int {
	switch {
	case code == "ACCESS_DENIED":
		return http.StatusForbidden
	case code == "AUTH_INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "_CONFLICT") || code == "USER_ALREADY_EXISTS":
		return http.StatusConflict
	case strings.HasPrefix(code, "RULE_INVALID_") ||
		strings.HasPrefix(code, "IDENTITY_INVALID_") ||
		code == "RECORD_INVALID":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps error bodies free of internal detail: mapped
// statuses carry a fixed phrase, validation errors keep their message.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusForbidden:
		return "access denied"
	case http.StatusUnauthorized:
		return "invalid credentials"
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "conflict"
	default:
		return err.Error()
	}
}
