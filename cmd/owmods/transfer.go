// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

func newExportCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the enabled mods as a JSON list",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(ctx context.Context, _ []string) error {
			e, err := app.openEngine(ctx, false)
			if err != nil {
				return err
			}
			data, err := e.Export()
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if output == "" || output == "-" {
				_, err = app.stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return &owmod.Error{Kind: owmod.IoError, Path: output, Err: err}
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newImportCommand(app *App) *cobra.Command {
	var disableOthers bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Install and enable the mods listed by export",
		Long: `Enable every mod listed in a file written by 'owmods export', installing
the ones that are missing. Use - to read the list from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runE(func(ctx context.Context, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return &owmod.Error{Kind: owmod.IoError, Path: args[0], Err: err}
			}

			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			defer app.followProgress(e)()

			res, err := e.Import(ctx, data, disableOthers)
			if res != nil {
				w := app.stdout
				for _, n := range res.Installed {
					fmt.Fprintln(w, SuccessStyle.Render("installed ")+string(n))
				}
				for _, n := range res.Enabled {
					fmt.Fprintln(w, SuccessStyle.Render("enabled   ")+string(n))
				}
				for _, n := range res.Disabled {
					fmt.Fprintln(w, WarningStyle.Render("disabled  ")+string(n))
				}
				for _, n := range res.Failed {
					fmt.Fprintln(w, ErrorStyle.Render("failed    ")+string(n))
				}
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&disableOthers, "disable-others", false, "disable installed mods that are not in the list")
	return cmd
}
