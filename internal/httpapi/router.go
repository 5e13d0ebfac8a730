// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cairn/cairn/internal/catalog"
	"github.com/cairn/cairn/internal/identity"
	"github.com/cairn/cairn/internal/observability"
)

const requestTimeout = 30 * time.Second

// Params groups the dependencies for building the API handler.
type Params struct {
	Identity *identity.Service
	Users    identity.UserRepository
	Catalog  *catalog.Service
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Handler serves the Cairn JSON API.
type Handler struct {
	identity *identity.Service
	users    identity.UserRepository
	catalog  *catalog.Service
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates the API handler. A nil logger falls back to slog.Default.
func New(params Params) *Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		identity: params.Identity,
		users:    params.Users,
		catalog:  params.Catalog,
		logger:   logger,
		metrics:  params.Metrics,
	}
}

// Router builds the chi router with the full middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	if h.metrics != nil {
		r.Use(metricsMiddleware(h.metrics))
	}
	r.Use(clientAddrMiddleware)
	r.Use(h.authMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.handleLogin)
			r.Post("/logout", h.handleLogout)
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.handleListRecords)
			r.Post("/", h.handleCreateRecord)

			r.Route("/{recordID}", func(r chi.Router) {
				r.Get("/", h.handleGetRecord)
				r.Put("/", h.handleUpdateRecord)
				r.Delete("/", h.handleDeleteRecord)

				r.Route("/rules", func(r chi.Router) {
					r.Get("/", h.handleListRules)
					r.Post("/", h.handleAddRule)
					r.Delete("/{ruleID}", h.handleRemoveRule)
				})
			})
		})
	})

	return r
}
