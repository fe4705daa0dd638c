package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	colorPrimary   = lipgloss.Color("12")  // bright blue
	colorSecondary = lipgloss.Color("10")  // bright green
	colorDim       = lipgloss.Color("240") // gray
	colorHighlight = lipgloss.Color("11")  // bright yellow
	colorError     = lipgloss.Color("9")   // bright red
	colorBorder    = lipgloss.Color("238") // dark gray

	styleHeader = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	// Outcome markers
	stylePublished = lipgloss.NewStyle().
			Foreground(colorSecondary)

	styleSkipped = lipgloss.NewStyle().
			Foreground(colorDim)

	styleDuplicate = lipgloss.NewStyle().
			Foreground(colorHighlight)

	styleFailed = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleInFlight = lipgloss.NewStyle().
			Foreground(colorPrimary)

	stylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder)

	styleErrorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Foreground(colorError).
			Padding(0, 1)

	// Status bar
	styleStatusBar = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)
)
