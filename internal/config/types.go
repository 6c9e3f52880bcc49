// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// LogLevelDebug logs everything, including per-phase pipeline detail.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs refreshes and completed operations.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs skipped registry entries and recoverable failures.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// MinConcurrency and MaxConcurrency bound the download worker count.
	MinConcurrency Concurrency = 1
	MaxConcurrency Concurrency = 32

	// DefaultDatabaseURL is the public mod registry.
	DefaultDatabaseURL DatabaseURL = "https://ow-mods.github.io/ow-mod-db/database.json"
	// DefaultConcurrency is the default number of parallel downloads.
	DefaultConcurrency Concurrency = 4
	// DefaultHTTPTimeout bounds a single registry fetch or archive download.
	DefaultHTTPTimeout = 10 * time.Minute

	modsDirName = "Mods"
)

var (
	// ErrInvalidDatabaseURL is the sentinel error wrapped by InvalidDatabaseURLError.
	ErrInvalidDatabaseURL = errors.New("invalid database url")
	// ErrInvalidDirPath is the sentinel error wrapped by InvalidDirPathError.
	ErrInvalidDirPath = errors.New("invalid directory path")
	// ErrInvalidConcurrency is the sentinel error wrapped by InvalidConcurrencyError.
	ErrInvalidConcurrency = errors.New("invalid concurrency")
	// ErrInvalidHTTPTimeout is the sentinel error wrapped by InvalidHTTPTimeoutError.
	ErrInvalidHTTPTimeout = errors.New("invalid http timeout")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// DatabaseURL is the absolute http(s) URL of the registry document.
	DatabaseURL string

	// InvalidDatabaseURLError is returned when a DatabaseURL is not an absolute http(s) URL.
	InvalidDatabaseURLError struct {
		Value DatabaseURL
	}

	// DirPath is a filesystem directory setting. The zero value means "use the default".
	DirPath string

	// InvalidDirPathError is returned when a non-empty DirPath is whitespace-only.
	InvalidDirPathError struct {
		Field string
		Value DirPath
	}

	// Concurrency is the download worker count.
	Concurrency int

	// InvalidConcurrencyError is returned when a Concurrency is out of range.
	InvalidConcurrencyError struct {
		Value Concurrency
	}

	// InvalidHTTPTimeoutError is returned when the HTTP timeout is not positive.
	InvalidHTTPTimeoutError struct {
		Value time.Duration
	}

	// LogLevel is the minimum level for component logs.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// ColorScheme specifies the color scheme for CLI output.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidUIConfigError is returned when a UIConfig has invalid fields.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It collects the field-level errors of every nested value.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// DatabaseURL is where the registry document is fetched from.
		DatabaseURL DatabaseURL `json:"database_url" mapstructure:"database_url"`
		// OWMLPath is the mod loader installation directory.
		OWMLPath DirPath `json:"owml_path" mapstructure:"owml_path"`
		// ModsDir holds installed mods; empty means <OWMLPath>/Mods.
		ModsDir DirPath `json:"mods_dir" mapstructure:"mods_dir"`
		// Concurrency caps parallel downloads.
		Concurrency Concurrency `json:"concurrency" mapstructure:"concurrency"`
		// HTTPTimeout bounds each registry fetch and archive download.
		HTTPTimeout time.Duration `json:"http_timeout" mapstructure:"http_timeout"`
		// LogLevel sets the root logger level.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// UI configures CLI output
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures the command line output.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// ResolvedModsDir returns ModsDir, or <OWMLPath>/Mods when ModsDir is unset.
func (c *Config) ResolvedModsDir() string {
	if c.ModsDir != "" {
		return string(c.ModsDir)
	}
	return filepath.Join(string(c.OWMLPath), modsDirName)
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.DatabaseURL.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.OWMLPath.validate("owml_path"); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.ModsDir.validate("mods_dir"); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Concurrency.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, &InvalidHTTPTimeoutError{Value: c.HTTPTimeout})
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// IsValid returns whether the UIConfig has valid fields.
func (c UIConfig) IsValid() (bool, []error) {
	if valid, errs := c.ColorScheme.IsValid(); !valid {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// String returns the string representation of the DatabaseURL.
func (u DatabaseURL) String() string { return string(u) }

// IsValid returns whether the DatabaseURL is an absolute http or https URL.
func (u DatabaseURL) IsValid() (bool, []error) {
	parsed, err := url.Parse(string(u))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false, []error{&InvalidDatabaseURLError{Value: u}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDatabaseURLError.
func (e *InvalidDatabaseURLError) Error() string {
	return fmt.Sprintf("invalid database url %q: must be an absolute http(s) URL", e.Value)
}

// Unwrap returns ErrInvalidDatabaseURL for errors.Is() compatibility.
func (e *InvalidDatabaseURLError) Unwrap() error { return ErrInvalidDatabaseURL }

// String returns the string representation of the DirPath.
func (p DirPath) String() string { return string(p) }

// IsValid returns whether the DirPath is valid.
// The zero value ("") is valid. Non-zero values must not be whitespace-only.
func (p DirPath) IsValid() (bool, []error) {
	return p.validate("")
}

func (p DirPath) validate(field string) (bool, []error) {
	if p == "" {
		return true, nil
	}
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidDirPathError{Field: field, Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDirPathError.
func (e *InvalidDirPathError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid directory path %q: non-empty value must not be whitespace-only", e.Value)
	}
	return fmt.Sprintf("invalid %s %q: non-empty value must not be whitespace-only", e.Field, e.Value)
}

// Unwrap returns ErrInvalidDirPath for errors.Is() compatibility.
func (e *InvalidDirPathError) Unwrap() error { return ErrInvalidDirPath }

// IsValid returns whether the Concurrency is within [MinConcurrency, MaxConcurrency].
func (c Concurrency) IsValid() (bool, []error) {
	if c < MinConcurrency || c > MaxConcurrency {
		return false, []error{&InvalidConcurrencyError{Value: c}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConcurrencyError.
func (e *InvalidConcurrencyError) Error() string {
	return fmt.Sprintf("invalid concurrency %d (valid: %d-%d)", e.Value, MinConcurrency, MaxConcurrency)
}

// Unwrap returns ErrInvalidConcurrency for errors.Is() compatibility.
func (e *InvalidConcurrencyError) Unwrap() error { return ErrInvalidConcurrency }

// Error implements the error interface for InvalidHTTPTimeoutError.
func (e *InvalidHTTPTimeoutError) Error() string {
	return fmt.Sprintf("invalid http timeout %s: must be positive", e.Value)
}

// Unwrap returns ErrInvalidHTTPTimeout for errors.Is() compatibility.
func (e *InvalidHTTPTimeoutError) Unwrap() error { return ErrInvalidHTTPTimeout }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level maps the LogLevel onto a charmbracelet/log level. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error {
	return ErrInvalidLogLevel
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL: DefaultDatabaseURL,
		OWMLPath:    DirPath(DefaultOWMLPath()),
		ModsDir:     "",
		Concurrency: DefaultConcurrency,
		HTTPTimeout: DefaultHTTPTimeout,
		LogLevel:    LogLevelInfo,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
