// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dgarroDC/ow-mod-man/internal/engine"
	"github.com/dgarroDC/ow-mod-man/internal/events"
	"github.com/dgarroDC/ow-mod-man/internal/install"
	"github.com/dgarroDC/ow-mod-man/internal/resolve"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// followProgress logs pipeline phase transitions until the returned func is called.
func (a *App) followProgress(e *engine.Engine) (stop func()) {
	var (
		mu   sync.Mutex
		last = map[string]events.Phase{}
	)
	id := e.Events().Subscribe(func(ev *events.Event) {
		d, ok := ev.Data.(events.InstallProgressData)
		if !ok {
			return
		}
		key := d.InstallID + "/" + string(d.Mod)
		mu.Lock()
		seen := last[key] == d.Phase
		last[key] = d.Phase
		mu.Unlock()
		if seen {
			return
		}
		a.logger.Debug("install progress", "mod", d.Mod, "phase", d.Phase, "total", d.Total)
	}, events.TypeInstallProgress)
	return func() { e.Events().Unsubscribe(id) }
}

// finish renders a plan and its report and turns a failed plan into an error.
func (a *App) finish(plan *resolve.Plan, report *install.Report, err error) error {
	if plan != nil {
		renderPlan(a.stderr, plan)
	}
	renderReport(a.stdout, report)
	return err
}

func newInstallCommand(app *App) *cobra.Command {
	var prerelease, reinstall bool
	cmd := &cobra.Command{
		Use:   "install <mod>...",
		Short: "Install mods and their dependencies",
		Long: `Install mods from the registry together with every dependency they need.
Installed dependencies below a required minimum version are updated and
disabled ones are enabled.`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			defer app.followProgress(e)()

			var opts []resolve.InstallOption
			if prerelease {
				opts = append(opts, resolve.WithPrerelease())
			}
			if reinstall {
				opts = append(opts, resolve.WithReinstall())
			}
			for _, name := range args {
				plan, report, err := e.PlanAndInstall(ctx, owmod.UniqueName(name), opts...)
				if err := app.finish(plan, report, err); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "install the registry's prerelease build")
	cmd.Flags().BoolVar(&reinstall, "reinstall", false, "download again even when the installed version is current")
	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update [mod...]",
		Short: "Update mods to the registry version",
		Long:  `Update the named mods, or every outdated installed mod when none are named.`,
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			defer app.followProgress(e)()

			if len(args) == 0 && len(e.Outdated()) == 0 {
				fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+"All mods are up to date")
				return nil
			}
			names := make([]owmod.UniqueName, len(args))
			for i, a := range args {
				names[i] = owmod.UniqueName(a)
			}
			return app.finish(e.Update(ctx, names...))
		}),
	}
}

func newEnableCommand(app *App, enabled bool) *cobra.Command {
	use, short := "enable", "Enable mods and their installed dependencies"
	if !enabled {
		use, short = "disable", "Disable mods"
	}
	var all bool
	cmd := &cobra.Command{
		Use:   use + " <mod>...",
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, false)
			if err != nil {
				return err
			}
			if all {
				if err := e.EnableAll(ctx, enabled); err != nil {
					return err
				}
				fmt.Fprintf(app.stdout, "%s%d mods enabled\n", SuccessStyle.Render("✓ "), len(e.Local().Active()))
				return nil
			}
			for _, name := range args {
				if err := app.finish(e.Enable(ctx, owmod.UniqueName(name), enabled)); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, use+" every installed mod")
	return cmd
}

func newUninstallCommand(app *App) *cobra.Command {
	var broken bool
	cmd := &cobra.Command{
		Use:   "uninstall <mod>",
		Short: "Remove an installed mod",
		Long: `Remove an installed mod. Mods that depend on it are reported and keep
their now-missing dependency. With --broken the argument is the path of a
directory whose manifest could not be read.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			if broken {
				if err := e.UninstallBroken(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+"Removed "+args[0])
				return nil
			}
			res, err := e.Uninstall(ctx, owmod.UniqueName(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%sUninstalled %s %s\n", SuccessStyle.Render("✓ "),
				res.Mod.Manifest.UniqueName, VerboseStyle.Render(res.Mod.Manifest.Version))
			if len(res.Dependents) > 0 {
				fmt.Fprintln(app.stderr, WarningStyle.Render("  still required by: ")+related(res.Dependents))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&broken, "broken", false, "remove a broken entry by path")
	return cmd
}

func newFixDepsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-deps <mod>",
		Short: "Install, enable or update the dependencies of a mod",
		Args:  cobra.ExactArgs(1),
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			defer app.followProgress(e)()
			return app.finish(e.FixDeps(ctx, owmod.UniqueName(args[0])))
		}),
	}
}
