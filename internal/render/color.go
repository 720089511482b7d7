package render

import "github.com/charmbracelet/lipgloss"

var (
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
	ColorMark   = lipgloss.Color("#fb4934")
)

var (
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
	StyleCumul  = lipgloss.NewStyle().Foreground(ColorDim).Italic(true)
	StyleMark   = lipgloss.NewStyle().Foreground(ColorMark).Underline(true)
)

// CohortStyle colors a module label with its cohort color.
func CohortStyle(hex string) lipgloss.Style {
	if hex == "" {
		return StyleBold
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Bold(true)
}
