// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgarroDC/ow-mod-man/internal/config"
)

// newConfigCommand creates the `owmods config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage owmods configuration",
		Long: `Manage owmods configuration.

Configuration is read from config.cue in the XDG config directory
(~/.config/owmods on Linux). Every field can be overridden with an
OWMODS_* environment variable, e.g. OWMODS_MODS_DIR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(_ context.Context, _ []string) error {
			return app.showConfig()
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Create the default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: app.runE(func(_ context.Context, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration and state paths",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: app.runE(func(_ context.Context, _ []string) error {
			cfgPath, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			statePath, err := config.StatePath()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config file: %s\n", cfgPath)
			fmt.Fprintf(app.stdout, "State file:  %s\n", statePath)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(_ context.Context, _ []string) error {
			fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
			return nil
		}),
	})

	return cfgCmd
}

func (a *App) showConfig() error {
	cfg := a.cfg
	w := a.stdout
	keyStyle, valueStyle := CmdStyle, SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	source := a.cfgPath
	if source == "" {
		if path, err := config.ConfigFilePath(); err == nil && fileExists(path) {
			source = path
		}
	}
	if source == "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), source)
	}
	fmt.Fprintln(w)

	rows := []struct{ key, value string }{
		{"database_url", cfg.DatabaseURL.String()},
		{"owml_path", cfg.OWMLPath.String()},
		{"mods_dir", cfg.ResolvedModsDir()},
		{"concurrency", fmt.Sprint(cfg.Concurrency)},
		{"http_timeout", cfg.HTTPTimeout.String()},
		{"log_level", cfg.LogLevel.String()},
		{"ui.color_scheme", cfg.UI.ColorScheme.String()},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render(r.key), valueStyle.Render(r.value))
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
