// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userBody  `json:"user"`
}

type userBody struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	clientIP := ""
	if addr := ClientAddrFromContext(r.Context()); addr.IsValid() {
		clientIP = addr.String()
	}

	session, token, err := h.identity.Login(r.Context(), req.Username, req.Password, r.UserAgent(), clientIP)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), session.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User: userBody{
			ID:     user.ID.String(),
			Name:   user.Name,
			Role:   user.Role.String(),
			Groups: user.GroupNames(),
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := h.identity.LogoutByToken(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}
