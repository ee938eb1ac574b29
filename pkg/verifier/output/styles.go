package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// Color constants using the ANSI 256-color palette.
const (
	// ColorPrimary is used for headers and emphasis (bright blue).
	ColorPrimary = lipgloss.Color("39")

	// ColorSuccess is used for good entries (green).
	ColorSuccess = lipgloss.Color("42")

	// ColorWarning is used for warnings and missing files (orange).
	ColorWarning = lipgloss.Color("214")

	// ColorDanger is used for bad entries and errors (red).
	ColorDanger = lipgloss.Color("196")

	// ColorMuted is used for secondary text (gray).
	ColorMuted = lipgloss.Color("245")
)

// Box styles.
var (
	// HeaderBox holds the list path and format.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox holds the run summary.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

// Text styles.
var (
	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	PathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	// DigestStyle is used for hex digests.
	DigestStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted)
)

// StatusStyle returns the style a status is rendered with.
func StatusStyle(s types.Status) lipgloss.Style {
	switch s {
	case types.Good:
		return SuccessStyle
	case types.Bad, types.Error, types.WrongSize:
		return ErrorStyle
	case types.NotFound:
		return WarningStyle
	case types.InProgress:
		return lipgloss.NewStyle().Foreground(ColorPrimary)
	default:
		return MutedStyle
	}
}
