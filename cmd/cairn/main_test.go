// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cairn Contributors

package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	subcommands := []string{"serve", "migrate", "status"}
	for _, sub := range subcommands {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "config flag with space",
			args:     []string{"--config", "/path/to/cairn.yaml", "--help"},
			wantFlag: "/path/to/cairn.yaml",
		},
		{
			name:     "config flag with equals",
			args:     []string{"--config=/etc/cairn.yaml", "--help"},
			wantFlag: "/etc/cairn.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset global
			configFile = ""

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "1.2.3 (commit: abc, built: today)"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "1.2.3")
}

func TestRootCommand_NoArgs(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	// With no subcommand, cobra prints help and exits cleanly.
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Usage:")
}

func TestResolveConfigFile(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		configFile = "/explicit/cairn.yaml"
		t.Cleanup(func() { configFile = "" })
		assert.Equal(t, "/explicit/cairn.yaml", resolveConfigFile())
	})

	t.Run("xdg default when present", func(t *testing.T) {
		configFile = ""
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)
		path := dir + "/cairn/cairn.yaml"
		require.NoError(t, os.MkdirAll(dir+"/cairn", 0o700))
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

		assert.Equal(t, path, resolveConfigFile())
	})

	t.Run("empty when nothing exists", func(t *testing.T) {
		configFile = ""
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		assert.Empty(t, resolveConfigFile())
	})
}

func TestMigrateCommand_Help(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"migrate", "--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"up", "down", "status", "force"} {
		assert.Contains(t, output, sub, "migrate help missing %q action", sub)
	}
}

func TestServeCommand_HasConfigFlags(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"serve", "--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, flag := range []string{"server.listen_addr", "database.url", "logging.format", "audit.mode"} {
		assert.Contains(t, output, flag, "serve help missing %q flag", flag)
	}
}
