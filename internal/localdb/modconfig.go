// SPDX-License-Identifier: MPL-2.0

package localdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// ConfigFileName is the per-mod state file holding the enabled flag.
	ConfigFileName = "config.json"
	// DefaultConfigFileName is shipped by mods that have settings.
	DefaultConfigFileName = "default-config.json"
)

// modConfig is the per-mod state file. Settings are kept as raw JSON so the
// manager never rewrites values it does not understand.
type modConfig struct {
	Enabled  bool                       `json:"enabled"`
	Settings map[string]json.RawMessage `json:"settings,omitempty"`
}

// readEnabled returns the persisted flag. A missing config file means disabled.
func readEnabled(modDir string) (bool, error) {
	cfg, err := readModConfig(filepath.Join(modDir, ConfigFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cfg.Enabled, nil
}

func readModConfig(path string) (*modConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg modConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// WriteEnabled persists enabled into modDir's config file. A missing config
// is seeded from default-config.json when the mod ships one, so a fresh
// install starts with the mod's default settings.
func WriteEnabled(modDir string, enabled bool) error {
	path := filepath.Join(modDir, ConfigFileName)
	cfg, err := readModConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = readModConfig(filepath.Join(modDir, DefaultConfigFileName))
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err = &modConfig{}, nil
		}
	}
	if err != nil {
		return err
	}
	cfg.Enabled = enabled
	return writeModConfig(path, cfg)
}

func writeModConfig(path string, cfg *modConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
