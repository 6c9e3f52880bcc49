// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/dgarroDC/ow-mod-man/internal/issue"
)

// skipConfigAnnotation marks commands that run without loading configuration.
const skipConfigAnnotation = "owmods/skip-config"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the owmods command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "owmods",
		Short: "Outer Wilds mod manager",
		Long: TitleStyle.Render("owmods") + SubtitleStyle.Render(" - Outer Wilds mod manager") + `

owmods installs, updates, enables and removes Outer Wilds mods from the
community mod registry, resolving dependencies and checking every installed
mod for missing dependencies, conflicts and outdated versions.

` + SubtitleStyle.Render("Examples:") + `
  owmods search horizons       Search the registry
  owmods install xen.NewHorizons
  owmods list                  List installed mods and their problems
  owmods update                Update every outdated mod
  owmods config show           Show current configuration`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] != "" {
				return nil
			}
			if err := app.loadConfig(cmd.Context(), flags); err != nil {
				app.explain(err)
				if rendered, rErr := issue.Get(issue.ConfigLoadFailedId).Render(glamourStyle(nil)); rErr == nil {
					fmt.Fprint(app.stderr, rendered)
				}
				return err
			}
			return nil
		},
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/owmods/config.cue)")

	rootCmd.AddCommand(
		newListCommand(app),
		newSearchCommand(app),
		newInfoCommand(app),
		newInstallCommand(app),
		newUpdateCommand(app),
		newOutdatedCommand(app),
		newEnableCommand(app, true),
		newEnableCommand(app, false),
		newUninstallCommand(app),
		newFixDepsCommand(app),
		newExportCommand(app),
		newImportCommand(app),
		newValidateCommand(app),
		newWatchCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// runE adapts fn into a cobra RunE that explains engine errors before
// returning them.
func (a *App) runE(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd.Context(), args)
		if err != nil {
			var exitErr *ExitError
			if !errors.As(err, &exitErr) {
				a.explain(err)
			}
		}
		return err
	}
}

// Execute runs the CLI and exits the process on failure.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
