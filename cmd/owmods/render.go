// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgarroDC/ow-mod-man/internal/config"
	"github.com/dgarroDC/ow-mod-man/internal/events"
	"github.com/dgarroDC/ow-mod-man/internal/install"
	"github.com/dgarroDC/ow-mod-man/internal/issue"
	"github.com/dgarroDC/ow-mod-man/internal/resolve"
	"github.com/dgarroDC/ow-mod-man/pkg/owmod"
)

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own Format; verbose mode shows the full chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// glamourStyle maps the configured color scheme to a glamour style name.
func glamourStyle(cfg *config.Config) string {
	if cfg == nil {
		return "auto"
	}
	switch cfg.UI.ColorScheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

// explain writes what the user can try about err: the suggestions of an
// ActionableError (with the cause chain in verbose mode) and the catalog
// entry for the error kind, if any. The error line itself is printed by fang.
func (a *App) explain(err error) {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && (ae.HasSuggestions() || a.verbose) {
		fmt.Fprintln(a.stderr, formatErrorForDisplay(ae, a.verbose))
	}
	if is := issue.ForError(err); is != nil {
		if rendered, rErr := is.Render(glamourStyle(a.cfg)); rErr == nil {
			fmt.Fprint(a.stderr, rendered)
		}
	}
}

// modLine renders one installed mod as a listing row.
func modLine(m *owmod.LocalMod) string {
	if m.Failed() {
		return ErrorStyle.Render("✗ ") + SubtitleStyle.Render(m.ModPath) + " " +
			ErrorStyle.Render(string(owmod.InvalidManifest))
	}
	marker := SuccessStyle.Render("● ")
	if !m.Enabled {
		marker = WarningStyle.Render("○ ")
	}
	line := marker + nameColumnStyle.Render(string(m.Manifest.UniqueName)) +
		versionColumnStyle.Render(m.Manifest.Version) +
		SubtitleStyle.Render(m.Manifest.DisplayName())
	if notes := annotations(m); notes != "" {
		line += " " + notes
	}
	return line
}

// annotations renders error and warning kinds, errors first.
func annotations(m *owmod.LocalMod) string {
	var parts []string
	for _, k := range m.Errors.Kinds() {
		parts = append(parts, ErrorStyle.Render(string(k)+related(m.Errors[k])))
	}
	for _, k := range m.Warnings.Kinds() {
		parts = append(parts, WarningStyle.Render(string(k)+related(m.Warnings[k])))
	}
	return strings.Join(parts, " ")
}

func related(names []owmod.UniqueName) string {
	if len(names) == 0 {
		return ""
	}
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = string(n)
	}
	return "(" + strings.Join(s, ", ") + ")"
}

// remoteLine renders one registry entry as a search row.
func remoteLine(m *owmod.RemoteMod, installed bool) string {
	marker := "  "
	if installed {
		marker = SuccessStyle.Render("✓ ")
	}
	return marker + nameColumnStyle.Render(string(m.UniqueName)) +
		versionColumnStyle.Render(m.Version) +
		m.Name + SubtitleStyle.Render(" by "+m.DisplayAuthor())
}

// renderPlan writes the steps that change something and every plan warning.
func renderPlan(w io.Writer, plan *resolve.Plan) {
	for _, step := range plan.Changes() {
		version := step.Version
		if version == "" {
			version = step.Manifest.Version
		}
		fmt.Fprintf(w, "  %s %s %s\n", CmdStyle.Render(string(step.Kind)), step.Mod, VerboseStyle.Render(version))
	}
	for _, warn := range plan.Warnings {
		fmt.Fprintln(w, WarningStyle.Render("  warning: ")+string(warn.Kind)+" "+string(warn.Mod)+related(warn.Related))
	}
}

// renderReport writes one line per plan step outcome.
func renderReport(w io.Writer, report *install.Report) {
	if report == nil {
		return
	}
	for _, res := range report.Results {
		style := SuccessStyle
		switch {
		case res.Err != nil:
			style = ErrorStyle
		case res.Outcome == events.OutcomeAlreadySatisfied:
			style = SubtitleStyle
		}
		line := style.Render(fmt.Sprintf("%-18s", res.Outcome)) + " " + string(res.Mod)
		if res.Version != "" {
			line += " " + VerboseStyle.Render(res.Version)
		}
		if res.Err != nil {
			line += " " + ErrorStyle.Render(res.Err.Error())
		}
		fmt.Fprintln(w, line)
	}
}
