// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check installed mods for problems",
		Long: `Check every installed mod for missing or disabled dependencies, active
conflicts, broken manifests and outdated versions. Exits with status 1 when
an enabled mod has an error.`,
		Args: cobra.NoArgs,
		RunE: app.runE(func(ctx context.Context, _ []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			problems := 0
			for _, m := range e.Local().All() {
				if len(m.Errors) == 0 && len(m.Warnings) == 0 && !m.Failed() {
					continue
				}
				fmt.Fprintln(app.stdout, modLine(m))
				problems++
			}
			if problems == 0 {
				fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+"No problems found")
			}
			if e.HasIssues() {
				return &ExitError{Code: 1, Err: fmt.Errorf("enabled mods have unresolved errors")}
			}
			return nil
		}),
	}
}
