// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, "~/.nomadflowcode", s.Paths.BaseDir)
	require.Equal(t, "nomadflow", s.Tmux.Session)
	require.Equal(t, 7681, s.Ttyd.Port)
	require.Equal(t, 8080, s.API.Port)
	require.Equal(t, "", s.Auth.Secret)
}

func TestLoadPartialTOMLFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[api]
port = 3000
host = "127.0.0.1"

[auth]
secret = "s3cret"
`)

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3000, s.API.Port)
	require.Equal(t, "127.0.0.1", s.API.Host)
	require.Equal(t, "s3cret", s.Auth.Secret)
	// Unset sections keep their defaults.
	require.Equal(t, "nomadflow", s.Tmux.Session)
	require.Equal(t, 7681, s.Ttyd.Port)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Default()
	s.Paths.BaseDir = dir
	s.Auth.Secret = "my-password"
	s.Tunnel.Subdomain = "my-laptop"

	require.NoError(t, Save(s))
	loaded, err := Load(s.ConfigFile())
	require.NoError(t, err)

	require.Equal(t, dir, loaded.Paths.BaseDir)
	require.Equal(t, "my-password", loaded.Auth.Secret)
	require.Equal(t, "my-laptop", loaded.Tunnel.Subdomain)
	require.Equal(t, 8080, loaded.API.Port) // default preserved
}

func TestEnsureDirectories(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nomadtest")
	s := Default()
	s.Paths.BaseDir = base

	require.NoError(t, s.EnsureDirectories())
	require.DirExists(t, base)
	require.DirExists(t, filepath.Join(base, "repos"))
	require.DirExists(t, filepath.Join(base, "worktrees"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
