// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/dgarroDC/ow-mod-man/internal/engine"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

func newListCommand(app *App) *cobra.Command {
	var enabledOnly bool
	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List installed mods",
		Long: `List installed mods with their version and every problem found by the
last validation pass. Broken and duplicate directories are listed last.`,
		Args: cobra.MaximumNArgs(1),
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, false)
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return app.listMods(e, query, enabledOnly)
		}),
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "only list enabled mods")
	return cmd
}

func (a *App) listMods(e *engine.Engine, query string, enabledOnly bool) error {
	w := a.stdout
	shown := 0
	for _, m := range e.SearchLocal(query) {
		if enabledOnly && !m.Enabled {
			continue
		}
		fmt.Fprintln(w, modLine(m))
		shown++
	}
	if query == "" && !enabledOnly {
		for _, m := range e.Local().All() {
			if m.Failed() || m.Errors.Has(owmod.Duplicate) {
				fmt.Fprintln(w, modLine(m)+" "+SubtitleStyle.Render(m.ModPath))
				shown++
			}
		}
	}
	if shown == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No mods installed in "+e.ModsDir()))
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", SubtitleStyle.Render(fmt.Sprintf("%d shown, %d enabled", shown, len(e.Local().Active()))))
	return nil
}

func newSearchCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the mod registry",
		Long: `Search the registry by name, author and unique name. Without a query every
entry is listed, most downloaded first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			results := e.SearchRemote(query)
			if len(results) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("No registry entries match "+query))
				return nil
			}
			for i, m := range results {
				if limit > 0 && i == limit {
					fmt.Fprintln(app.stdout, SubtitleStyle.Render(fmt.Sprintf("... %d more", len(results)-limit)))
					break
				}
				_, installed := e.Local().Get(m.UniqueName)
				fmt.Fprintln(app.stdout, remoteLine(m, installed))
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "maximum number of results (0 for all)")
	return cmd
}

func newInfoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info <mod>",
		Short: "Show details about a mod",
		Args:  cobra.ExactArgs(1),
		RunE: app.runE(func(ctx context.Context, args []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			info, err := e.GetMod(owmod.UniqueName(args[0]))
			if err != nil {
				return err
			}
			out, err := glamour.Render(modMarkdown(info), glamourStyle(app.cfg))
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, out)
			return nil
		}),
	}
}

// modMarkdown describes a mod for the info command.
func modMarkdown(info engine.ModInfo) string {
	var md strings.Builder
	title, author := string(info.Name), ""
	if info.Remote != nil {
		title, author = info.Remote.Name, info.Remote.DisplayAuthor()
	} else if info.Local != nil {
		title, author = info.Local.Manifest.DisplayName(), info.Local.Manifest.Author
	}
	fmt.Fprintf(&md, "# %s\n\n", title)
	fmt.Fprintf(&md, "`%s`", info.Name)
	if author != "" {
		fmt.Fprintf(&md, " by **%s**", author)
	}
	md.WriteString("\n\n")
	if info.Remote != nil && info.Remote.Description != "" {
		md.WriteString(info.Remote.Description + "\n\n")
	}

	md.WriteString("| | |\n|---|---|\n")
	if info.Local != nil {
		state := "disabled"
		if info.Local.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(&md, "| Installed | %s (%s) |\n", info.Local.Manifest.Version, state)
		fmt.Fprintf(&md, "| Path | %s |\n", info.Local.ModPath)
	} else {
		md.WriteString("| Installed | no |\n")
	}
	if r := info.Remote; r != nil {
		fmt.Fprintf(&md, "| Registry | %s |\n", r.Version)
		if r.Prerelease != nil {
			fmt.Fprintf(&md, "| Prerelease | %s |\n", r.Prerelease.Version)
		}
		fmt.Fprintf(&md, "| Downloads | %d |\n", r.DownloadCount)
		if r.Required {
			md.WriteString("| Required | yes |\n")
		}
		if r.Repo != "" {
			fmt.Fprintf(&md, "| Repository | %s |\n", r.Repo)
		}
	}

	var manifest owmod.Manifest
	switch {
	case info.Local != nil:
		manifest = info.Local.Manifest
	case info.Remote != nil:
		manifest = info.Remote.Manifest()
	}
	writeNames(&md, "Dependencies", manifest.Dependencies)
	writeNames(&md, "Conflicts", manifest.Conflicts)

	if m := info.Local; m != nil && (len(m.Errors) > 0 || len(m.Warnings) > 0) {
		md.WriteString("\n## Problems\n\n")
		for _, k := range m.Errors.Kinds() {
			fmt.Fprintf(&md, "- **%s** %s\n", k, related(m.Errors[k]))
		}
		for _, k := range m.Warnings.Kinds() {
			fmt.Fprintf(&md, "- %s %s\n", k, related(m.Warnings[k]))
		}
	}
	if info.Remote != nil && info.Remote.Readme != nil && info.Remote.Readme.HTMLURL != "" {
		fmt.Fprintf(&md, "\nReadme: <%s>\n", info.Remote.Readme.HTMLURL)
	}
	return md.String()
}

func writeNames(md *strings.Builder, title string, names []owmod.UniqueName) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(md, "\n## %s\n\n", title)
	for _, n := range names {
		fmt.Fprintf(md, "- `%s`\n", n)
	}
}

func newOutdatedCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "outdated",
		Short: "List installed mods with a newer registry version",
		Args:  cobra.NoArgs,
		RunE: app.runE(func(ctx context.Context, _ []string) error {
			e, err := app.openEngine(ctx, true)
			if err != nil {
				return err
			}
			outdated := e.Outdated()
			if len(outdated) == 0 {
				fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+"All mods are up to date")
				return nil
			}
			for _, info := range outdated {
				fmt.Fprintf(app.stdout, "%s%s → %s\n",
					nameColumnStyle.Render(string(info.Name)),
					VerboseStyle.Render(info.Local.Manifest.Version),
					CmdStyle.Render(info.Remote.Version))
			}
			return nil
		}),
	}
}
