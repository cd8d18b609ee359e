package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nox-hq/aegis/audit"
)

var (
	// Decision colors.
	colorBlocked = lipgloss.Color("#FF0000")
	colorFlagged = lipgloss.Color("#FFD700")
	colorAllowed = lipgloss.Color("#32CD32")
	colorInfo    = lipgloss.Color("#808080")

	// UI colors.
	colorTitle    = lipgloss.Color("#FFFFFF")
	colorSubtle   = lipgloss.Color("#666666")
	colorSelected = lipgloss.Color("#7D56F4")

	// Styles.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTitle)

	subtleStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSelected)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorSubtle)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorSubtle)

	eventStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#AAAAAA"))

	sessionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5F87AF"))

	contextKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87AFFF"))
)

// decisionStyle returns the style for a decision badge.
func decisionStyle(d audit.Decision) lipgloss.Style {
	switch d {
	case audit.DecisionBlocked:
		return lipgloss.NewStyle().Bold(true).Foreground(colorBlocked)
	case audit.DecisionFlagged:
		return lipgloss.NewStyle().Bold(true).Foreground(colorFlagged)
	case audit.DecisionAllowed:
		return lipgloss.NewStyle().Foreground(colorAllowed)
	default:
		return lipgloss.NewStyle().Foreground(colorInfo)
	}
}

// decisionBadge renders a fixed-width decision label.
func decisionBadge(d audit.Decision) string {
	label := string(d)
	for len(label) < 7 {
		label += " "
	}
	return decisionStyle(d).Render(label)
}
