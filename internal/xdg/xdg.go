// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

// Package xdg provides XDG Base Directory paths for Cairn.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "cairn"

// ConfigDir returns the XDG config directory for cairn.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the conventional config file location,
// ConfigDir()/cairn.yaml. Callers decide whether a missing file is an
// error.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "cairn.yaml")
}
