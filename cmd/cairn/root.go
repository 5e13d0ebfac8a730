// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cairn/cairn/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// resolveConfigFile returns the config path to load: the --config flag
// when given, else the XDG default location when a file exists there,
// else empty (built-in defaults only).
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	if path := xdg.DefaultConfigFile(); fileExists(path) {
		return path
	}
	return ""
}

// fileExists reports whether path names an existing file. Permission
// errors count as existing so we fail loudly on load instead of
// silently ignoring the file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// NewRootCmd creates the root command for the Cairn CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cairn",
		Short: "Cairn - a metadata catalog with rule-based access control",
		Long: `Cairn is a metadata catalog server. Records are protected by
per-user, per-group and public security rules, optionally restricted
to source IP ranges, and served over an HTTP API.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
