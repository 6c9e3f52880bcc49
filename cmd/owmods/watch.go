// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgarroDC/ow-mod-man/internal/events"
	"github.com/dgarroDC/ow-mod-man/internal/watch"
)

func newWatchCommand(app *App) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Revalidate mods whenever the mods directory changes",
		Long: `Watch the mods directory and rescan it whenever a mod is added, removed,
or has its manifest or config rewritten. Problems are printed after every
rescan. Stops on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(ctx context.Context, _ []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(e.ModsDir(), 0o755); err != nil {
				return err
			}

			e.Events().Subscribe(func(ev *events.Event) {
				if d, ok := ev.Data.(events.DatabaseChangedData); ok && d.Database == events.DatabaseLocal {
					app.logger.Debug("local database changed", "mods", d.Count)
				}
			}, events.TypeDatabaseChanged)

			w, err := watch.New(watch.Config{
				ModsDir:  e.ModsDir(),
				Debounce: debounce,
				Logger:   app.logger.WithPrefix("watch"),
				OnChange: func(ctx context.Context, changed []string) error {
					app.logger.Info("mods directory changed", "paths", changed)
					snap, err := e.RefreshLocal(ctx)
					if err != nil {
						return err
					}
					for _, m := range snap.All() {
						if m.Failed() || len(m.Errors) > 0 {
							fmt.Fprintln(app.stdout, modLine(m))
						}
					}
					return nil
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stderr, SubtitleStyle.Render("Watching "+e.ModsDir()+" (Ctrl+C to stop)"))
			return w.Run(ctx)
		}),
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before rescanning (default 300ms)")
	return cmd
}
