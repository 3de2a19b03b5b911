package styles

import (
	"dcmview/internal/config"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the core UI styles
var Theme = newTheme(config.GetTheme("default"))

type theme struct {
	App        lipgloss.Style
	Title      lipgloss.Style
	Selected   lipgloss.Style
	Unselected lipgloss.Style
	Help       lipgloss.Style
	Error      lipgloss.Style
	Viewport   lipgloss.Style
	Slider     lipgloss.Style
}

func newTheme(colors map[string]string) theme {
	return theme{
		App: lipgloss.NewStyle().
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colors["primary"])).
			MarginBottom(1),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors["success"])).
			Bold(true),
		Unselected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors["info"])),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors["error"])),
		Viewport: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colors["border"])),
		Slider: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors["emphasis"])),
	}
}

// Use switches Theme to the named config theme
func Use(name string) {
	Theme = newTheme(config.GetTheme(name))
}
