// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgarroDC/ow-mod-man/internal/issue"
	"github.com/dgarroDC/ow-mod-man/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "owmods"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. OWMODS_LOG_LEVEL.
	EnvPrefix = "OWMODS"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the owmods configuration directory under the XDG config home.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if xdg.ConfigHome == "" {
		return "", errors.New("failed to resolve config home directory")
	}
	return filepath.Join(xdg.ConfigHome, AppName), nil
}

// StateDir returns the directory for engine-written state and the registry cache.
func StateDir() (string, error) {
	if stateDirOverride != "" {
		return stateDirOverride, nil
	}
	if xdg.StateHome == "" {
		return "", errors.New("failed to resolve state home directory")
	}
	return filepath.Join(xdg.StateHome, AppName), nil
}

// DefaultOWMLPath returns the default loader directory under the XDG data home.
func DefaultOWMLPath() string {
	return filepath.Join(xdg.DataHome, AppName, "OWML")
}

// ConfigFilePath returns the default config file location.
func ConfigFilePath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. Precedence: environment, config file, defaults.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("database_url", defaults.DatabaseURL)
	v.SetDefault("owml_path", defaults.OWMLPath)
	v.SetDefault("mods_dir", defaults.ModsDir)
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("http_timeout", defaults.HTTPTimeout)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// An explicit --config path must exist; the default location is optional.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'owmods config show' to see the effective configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			resolvedPath = cuePath
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so the decoded values are checked again.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			Wrap(errors.Join(flattenFieldErrors(errs)...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// flattenFieldErrors expands InvalidConfigError so every bad field is reported.
func flattenFieldErrors(errs []error) []error {
	var out []error
	for _, err := range errs {
		var cfgErr *InvalidConfigError
		if errors.As(err, &cfgErr) {
			out = append(out, cfgErr.FieldErrors...)
			continue
		}
		out = append(out, err)
	}
	return out
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Config decodes to map[string]any rather than a struct so Viper keeps its
// defaults and environment precedence, and Concrete(false) because every
// field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig writes a default config file if none exists and returns its path.
func CreateDefaultConfig() (string, error) {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := Save(DefaultConfig()); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// Save writes the configuration to the default config file.
func Save(cfg *Config) error {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// owmods configuration file\n")
	sb.WriteString("// Every field is optional and can be overridden with " + EnvPrefix + "_<FIELD>.\n\n")

	fmt.Fprintf(&sb, "database_url: %q\n", cfg.DatabaseURL)
	if cfg.OWMLPath != "" {
		fmt.Fprintf(&sb, "owml_path: %q\n", cfg.OWMLPath)
	}
	if cfg.ModsDir != "" {
		fmt.Fprintf(&sb, "mods_dir: %q\n", cfg.ModsDir)
	}
	fmt.Fprintf(&sb, "concurrency: %d\n", cfg.Concurrency)
	fmt.Fprintf(&sb, "http_timeout: %q\n", cfg.HTTPTimeout.String())
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}
