// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output, tuned for dark terminals.
const (
	// ColorPrimary is used for titles and mod names.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is used for secondary text such as authors and paths.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is used for enabled mods and successful outcomes.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is used for error annotations and failed outcomes.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is used for warning annotations and disabled mods.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is used for unique names, versions and commands.
	ColorHighlight = lipgloss.Color("#3B82F6")

	// ColorVerbose is used for supplementary details.
	ColorVerbose = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle is for headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary text.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and enabled markers.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and error annotations.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warnings and disabled markers.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for unique names, commands and keys.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// VerboseStyle is for supplementary information.
	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorVerbose)

	// nameColumnStyle pads unique names in mod listings.
	nameColumnStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Width(36)

	// versionColumnStyle pads versions in mod listings.
	versionColumnStyle = lipgloss.NewStyle().
				Foreground(ColorVerbose).
				Width(12)
)
