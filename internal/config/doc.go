// SPDX-License-Identifier: MPL-2.0

// Package config handles the mod manager configuration using Viper with CUE as the
// file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/owmods/config.cue (resolved through
// github.com/adrg/xdg, so the platform equivalent on macOS and Windows). Every field
// can be overridden from the environment with the OWMODS_ prefix, for example
// OWMODS_DATABASE_URL or OWMODS_UI_COLOR_SCHEME.
//
// The file is validated against the embedded CUE schema (config_schema.cue) before
// it reaches Viper, so type errors are reported with the offending field path.
//
// The package also owns the engine-written state file (state.json), which records
// what the manager last learned about the registry.
package config
