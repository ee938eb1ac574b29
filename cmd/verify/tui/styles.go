// Package tui shows a running verification in the terminal using Bubble Tea,
// Lip Gloss and Bubbles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// Color palette.
var (
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#28A745")
	warningColor = lipgloss.Color("#FFC107")
	dangerColor  = lipgloss.Color("#DC3545")
	mutedColor   = lipgloss.Color("#666666")
	borderColor  = lipgloss.Color("#333333")
)

var (
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(borderColor)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedTextStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	successTextStyle = lipgloss.NewStyle().
				Foreground(successColor)

	warningTextStyle = lipgloss.NewStyle().
				Foreground(warningColor)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	statsValueStyle = lipgloss.NewStyle().
			Bold(true)
)

// statusStyle picks the color an entry status is shown in.
func statusStyle(s types.Status) lipgloss.Style {
	switch s {
	case types.Good:
		return successTextStyle
	case types.Bad, types.Error, types.WrongSize:
		return errorTextStyle
	case types.NotFound:
		return warningTextStyle
	default:
		return mutedTextStyle
	}
}

func logLevelStyle(level logging.Level) lipgloss.Style {
	switch level {
	case logging.LevelWarn:
		return warningTextStyle
	case logging.LevelError:
		return errorTextStyle
	default:
		return mutedTextStyle
	}
}

func renderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	b := make([]rune, width)
	for i := range b {
		b[i] = '─'
	}
	return dividerStyle.Render(string(b))
}
