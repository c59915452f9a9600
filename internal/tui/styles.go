package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorOn     = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorOff    = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorTest   = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorInfo   = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorBorder = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	onStyle       = lipgloss.NewStyle().Foreground(colorOn).Bold(true)
	offStyle      = lipgloss.NewStyle().Foreground(colorOff).Bold(true)
	testStyle     = lipgloss.NewStyle().Foreground(colorTest)
	nameStyle     = lipgloss.NewStyle().Bold(true)
	addrStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	selectedStyle = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)
