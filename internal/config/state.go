// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	// StateFileName is the engine-written state file inside StateDir.
	StateFileName = "state.json"
	// RegistryCacheFileName is the cached registry document inside StateDir.
	RegistryCacheFileName = "registry.json"
)

// State is what the manager last learned about the registry. It is written by
// the engine after every successful refresh and is never edited by users.
type State struct {
	// RegistryETag validates the cached registry document on the next fetch.
	RegistryETag string `json:"registry_etag,omitempty"`
	// RegistryFetchedAt is when the cached document was downloaded.
	RegistryFetchedAt time.Time `json:"registry_fetched_at,omitzero"`
	// RegistryModCount is the number of entries in the cached document.
	RegistryModCount int `json:"registry_mod_count,omitempty"`
}

// StatePath returns the state file location.
func StatePath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StateFileName), nil
}

// RegistryCachePath returns the registry cache location.
func RegistryCachePath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, RegistryCacheFileName), nil
}

// LoadState reads the state file at path. A missing file yields the zero State.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return &st, nil
}

// SaveState writes st to path, replacing any previous file atomically.
func SaveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
