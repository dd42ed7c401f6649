// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads and saves the laptop server's config.toml —
// base directory, multiplexer session name, terminal-daemon port,
// API host/port, shared secret, and tunnel-relay settings.
package config

import (
	"os"
	"path/filepath"
)

// builtinRelaySecret is the public, non-secret default baked into the
// binary so a fresh install works without configuration. It only
// prevents casual abuse from non-NomadFlow traffic.
const builtinRelaySecret = "2990b3a121ae2a13492e71b4e41b33f7d0a7c5beea722974"

type PathsConfig struct {
	BaseDir string `toml:"base_dir"`
}

type TmuxConfig struct {
	Session string `toml:"session"`
}

type TtydConfig struct {
	Port int `toml:"port"`
}

type APIConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type AuthConfig struct {
	Secret string `toml:"secret"`
}

type TunnelConfig struct {
	RelayHost   string `toml:"relay_host"`
	RelayPort   int    `toml:"relay_port"`
	RelaySecret string `toml:"relay_secret"`
	// Subdomain is the preferred public subdomain; empty means random.
	Subdomain string `toml:"subdomain"`
}

// Settings is the laptop server's full configuration, as loaded from
// config.toml. All fields are optional in the file; zero values are
// filled in by Default / applyDefaults.
type Settings struct {
	Paths  PathsConfig  `toml:"paths"`
	Tmux   TmuxConfig   `toml:"tmux"`
	Ttyd   TtydConfig   `toml:"ttyd"`
	API    APIConfig    `toml:"api"`
	Auth   AuthConfig   `toml:"auth"`
	Tunnel TunnelConfig `toml:"tunnel"`
}

// Default returns the settings used when no config.toml exists.
func Default() Settings {
	return Settings{
		Paths: PathsConfig{BaseDir: "~/.nomadflowcode"},
		Tmux:  TmuxConfig{Session: "nomadflow"},
		Ttyd:  TtydConfig{Port: 7681},
		API:   APIConfig{Port: 8080, Host: "0.0.0.0"},
		Auth:  AuthConfig{},
		Tunnel: TunnelConfig{
			RelayHost:   "relay.nomadflowcode.dev",
			RelayPort:   7835,
			RelaySecret: builtinRelaySecret,
		},
	}
}

// applyDefaults fills zero-valued fields of s with Default()'s values,
// so a config.toml that sets only a handful of keys still produces a
// complete Settings.
func applyDefaults(s Settings) Settings {
	d := Default()
	if s.Paths.BaseDir == "" {
		s.Paths.BaseDir = d.Paths.BaseDir
	}
	if s.Tmux.Session == "" {
		s.Tmux.Session = d.Tmux.Session
	}
	if s.Ttyd.Port == 0 {
		s.Ttyd.Port = d.Ttyd.Port
	}
	if s.API.Port == 0 {
		s.API.Port = d.API.Port
	}
	if s.API.Host == "" {
		s.API.Host = d.API.Host
	}
	if s.Tunnel.RelayHost == "" {
		s.Tunnel.RelayHost = d.Tunnel.RelayHost
	}
	if s.Tunnel.RelayPort == 0 {
		s.Tunnel.RelayPort = d.Tunnel.RelayPort
	}
	if s.Tunnel.RelaySecret == "" {
		s.Tunnel.RelaySecret = d.Tunnel.RelaySecret
	}
	return s
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// BaseDir returns the expanded, absolute base directory.
func (s Settings) BaseDir() string {
	return expandHome(s.Paths.BaseDir)
}

// ReposDir returns <base>/repos.
func (s Settings) ReposDir() string {
	return filepath.Join(s.BaseDir(), "repos")
}

// WorktreesDir returns <base>/worktrees.
func (s Settings) WorktreesDir() string {
	return filepath.Join(s.BaseDir(), "worktrees")
}

// ConfigFile returns <base>/config.toml for this instance.
func (s Settings) ConfigFile() string {
	return filepath.Join(s.BaseDir(), "config.toml")
}

// DefaultConfigPath is the static default config location.
func DefaultConfigPath() string {
	return expandHome("~/.nomadflowcode/config.toml")
}

// EnsureDirectories creates base/repos/worktrees if missing.
func (s Settings) EnsureDirectories() error {
	for _, dir := range []string{s.BaseDir(), s.ReposDir(), s.WorktreesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
