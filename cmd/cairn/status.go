// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairn/cairn/internal/config"
)

// ComponentStatus holds the health information for one component.
type ComponentStatus struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of the database and a running server",
		Long:  `Check database connectivity and schema state, and probe the observability endpoint of a running server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	appCfg, err := config.Load(resolveConfigFile(), nil)
	if err != nil {
		return err
	}

	statuses := []ComponentStatus{
		queryDatabaseStatus(),
		queryObservabilityStatus(appCfg.Server.ObservabilityAddr),
	}

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSTATUS\tDETAIL")
	for _, s := range statuses {
		state := "healthy"
		detail := s.Detail
		if !s.Healthy {
			state = "unhealthy"
			if s.Error != "" {
				detail = s.Error
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Component, state, detail)
	}
	return w.Flush()
}

// queryDatabaseStatus connects to the database and reports the schema state.
func queryDatabaseStatus() ComponentStatus {
	status := ComponentStatus{Component: "database"}

	migrator, err := newMigrator()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = migrator.Close() }()

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Error = err.Error()
		return status
	}

	switch {
	case dirty:
		status.Detail = fmt.Sprintf("schema dirty at version %d, manual intervention required", version)
	case version == 0:
		status.Healthy = true
		status.Detail = "connected, no migrations applied"
	default:
		status.Healthy = true
		status.Detail = fmt.Sprintf("connected, schema at version %d", version)
	}
	return status
}

// queryObservabilityStatus probes the readiness endpoint of a running server.
func queryObservabilityStatus(addr string) ComponentStatus {
	status := ComponentStatus{Component: "server"}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz/readiness")
	if err != nil {
		status.Error = "not reachable"
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		status.Healthy = true
		status.Detail = "ready"
		return status
	}
	status.Error = fmt.Sprintf("not ready (HTTP %d)", resp.StatusCode)
	return status
}
