// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nomadflowcode/nomadflow/internal/nomaderr"
)

// Load reads settings from path. A missing file is not an error — it
// yields Default(). Settings are loaded once at process start per the
// data model's ownership rule.
func Load(path string) (Settings, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, nomaderr.Wrap(nomaderr.Config, "read config", err)
	}

	var s Settings
	if _, err := toml.Decode(string(data), &s); err != nil {
		return Settings{}, nomaderr.Wrap(nomaderr.Config, "parse config", err)
	}
	return applyDefaults(s), nil
}

// Save writes s to its ConfigFile location, creating parent
// directories as needed.
func Save(s Settings) error {
	path := s.ConfigFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nomaderr.Wrap(nomaderr.Config, "create config dir", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nomaderr.Wrap(nomaderr.Config, "create config file", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(s); err != nil {
		return nomaderr.Wrap(nomaderr.Config, "encode config", err)
	}
	return nil
}
