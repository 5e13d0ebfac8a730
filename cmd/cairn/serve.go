// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairn/cairn/internal/access"
	"github.com/cairn/cairn/internal/access/audit"
	accessstore "github.com/cairn/cairn/internal/access/store"
	"github.com/cairn/cairn/internal/catalog"
	"github.com/cairn/cairn/internal/config"
	"github.com/cairn/cairn/internal/httpapi"
	"github.com/cairn/cairn/internal/identity"
	identitypg "github.com/cairn/cairn/internal/identity/postgres"
	"github.com/cairn/cairn/internal/logging"
	"github.com/cairn/cairn/internal/observability"
	"github.com/cairn/cairn/internal/store"
)

// autoMigrateEnvVar disables startup migrations when set to a false
// value. Migrations run by default so a fresh deployment comes up
// without a separate migrate step.
const autoMigrateEnvVar = "CAIRN_AUTO_MIGRATE"

const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	flags := config.Flags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Cairn API server",
		Long: `Start the HTTP API server: connects to PostgreSQL, applies pending
schema migrations and serves the record and rule-management API.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigFile(), flags)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	cmd.Flags().AddFlagSet(flags)

	return cmd
}

// runServe starts the API server and blocks until shutdown.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("cairn", version, cfg.Logging.Format, cfg.Logging.Level)

	slog.Info("starting cairn",
		"listen_addr", cfg.Server.ListenAddr,
		"observability_addr", cfg.Server.ObservabilityAddr,
		"audit_mode", cfg.Audit.Mode,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect first: it retries until the database answers, so the
	// migrator below never races a still-starting server.
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	if parseAutoMigrate() {
		if err := runAutoMigration(cfg.Database.URL); err != nil {
			return err
		}
	}

	// Cancellation fans out to the server goroutines below.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obsServer := observability.NewServer(cfg.Server.ObservabilityAddr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrChan, err := obsServer.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, obsErrChan, "observability")

	slog.Info("observability server started", "addr", obsServer.Addr())

	users := identitypg.NewUserRepository(pool)
	sessions := identitypg.NewSessionRepository(pool)
	rules := accessstore.NewRuleStore(pool, slog.Default())
	records := catalog.NewPostgresStore(pool)

	identityService := identity.NewService(users, sessions, identity.NewArgon2idHasher())
	evaluator := access.NewEvaluator(rules, slog.Default())

	auditLogger := audit.NewLogger(audit.Mode(cfg.Audit.Mode), nil)
	defer func() {
		if closeErr := auditLogger.Close(); closeErr != nil {
			slog.Warn("error closing audit logger", "error", closeErr)
		}
	}()

	catalogService := catalog.NewService(records, rules, evaluator, auditLogger)

	handler := httpapi.New(httpapi.Params{
		Identity: identityService,
		Users:    users,
		Catalog:  catalogService,
		Logger:   slog.Default(),
		Metrics:  obsServer.Metrics(),
	})

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	cmd.Println("Cairn server started")
	slog.Info("cairn ready", "addr", cfg.Server.ListenAddr)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errChan:
		cancel()
		return fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error shutting down http server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// parseAutoMigrate reads the auto-migrate environment variable.
// Unset or unparseable values enable migrations, with a warning on
// unparseable input.
func parseAutoMigrate() bool {
	raw, ok := os.LookupEnv(autoMigrateEnvVar)
	if !ok || raw == "" {
		return true
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("invalid auto-migrate value, defaulting to enabled",
			"var", autoMigrateEnvVar,
			"value", raw,
		)
		return true
	}
	return enabled
}

// runAutoMigration applies pending migrations at startup.
func runAutoMigration(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		slog.Info("schema up to date")
		return nil
	}

	slog.Info("applying pending migrations", "count", len(pending))
	if err := migrator.Up(); err != nil {
		return err
	}

	version, _, err := migrator.Version()
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "version", version)
	return nil
}

// monitorServerErrors cancels the context when a background server
// reports an error, so a failed listener takes the process down
// gracefully instead of leaving it half-running.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
