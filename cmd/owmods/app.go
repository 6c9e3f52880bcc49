// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/dgarroDC/ow-mod-man/internal/config"
	"github.com/dgarroDC/ow-mod-man/internal/engine"
	"github.com/dgarroDC/ow-mod-man/internal/issue"
)

type (
	// App wires CLI services and shared dependencies. Cobra handlers receive
	// an App and reach the engine only through it.
	App struct {
		Config    ConfigProvider
		NewEngine EngineFactory
		stdout    io.Writer
		stderr    io.Writer

		// Set by the root command before any subcommand runs.
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
		verbose bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		NewEngine EngineFactory
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// EngineFactory builds an unopened engine from configuration.
	EngineFactory func(cfg *config.Config, opts ...engine.Option) (*engine.Engine, error)

	rootFlagValues struct {
		verbose    bool
		configPath string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.NewEngine == nil {
		deps.NewEngine = engine.FromConfig
	}
	return &App{
		Config:    deps.Config,
		NewEngine: deps.NewEngine,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
		logger:    log.New(io.Discard),
	}
}

// loadConfig loads configuration and builds the root logger. --verbose
// forces debug logging regardless of log_level.
func (a *App) loadConfig(ctx context.Context, flags *rootFlagValues) error {
	a.verbose = flags.verbose
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(flags.configPath).
			WithSuggestion("Run 'owmods config show' to inspect the effective configuration").
			Wrap(err).
			BuildError()
	}
	a.cfg = cfg
	a.cfgPath = flags.configPath

	level := cfg.LogLevel.Level()
	if flags.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix: "owmods",
		Level:  level,
	})
	return nil
}

// openEngine builds and opens the engine. With remote set, the registry is
// refreshed too; a failed refresh is logged and the cached registry is used.
func (a *App) openEngine(ctx context.Context, remote bool) (*engine.Engine, error) {
	e, err := a.NewEngine(a.cfg,
		engine.WithLogger(a.logger),
		engine.WithUserAgent("owmods/"+Version),
	)
	if err != nil {
		return nil, err
	}
	if err := e.Open(ctx); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read mods directory").
			WithResource(e.ModsDir()).
			Wrap(err).
			BuildError()
	}
	if remote {
		if _, err := e.RefreshRemote(ctx); err != nil {
			if e.Remote().Len() == 0 {
				return nil, err
			}
			a.logger.Warn("using cached registry", "error", err)
		}
	}
	return e, nil
}
