package popup

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha.
var (
	colorText    = lipgloss.Color("#cdd6f4")
	colorMuted   = lipgloss.Color("#6c7086")
	colorMauve   = lipgloss.Color("#cba6f7")
	colorBlue    = lipgloss.Color("#89b4fa")
	colorGreen   = lipgloss.Color("#a6e3a1")
	colorRed     = lipgloss.Color("#f38ba8")
	colorYellow  = lipgloss.Color("#f9e2af")
	colorSurface = lipgloss.Color("#313244")
)

type styles struct {
	Title     lipgloss.Style
	Section   lipgloss.Style
	Muted     lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	StatusBar lipgloss.Style
	Panel     lipgloss.Style
}

func newStyles() styles {
	return styles{
		Title:     lipgloss.NewStyle().Foreground(colorMauve).Bold(true),
		Section:   lipgloss.NewStyle().Foreground(colorBlue).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Status:    lipgloss.NewStyle().Foreground(colorText),
		Error:     lipgloss.NewStyle().Foreground(colorRed),
		Warning:   lipgloss.NewStyle().Foreground(colorYellow),
		Success:   lipgloss.NewStyle().Foreground(colorGreen),
		StatusBar: lipgloss.NewStyle().Background(colorSurface).Foreground(colorText).Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted),
	}
}
