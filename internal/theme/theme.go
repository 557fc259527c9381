// Package theme holds the Lip Gloss palette and shared styles for streamctl.
// It imports nothing internal so every view can use it.
package theme

import "github.com/charmbracelet/lipgloss"

// Session status colors.
var (
	ColorStopped  = lipgloss.Color("#6b7280")
	ColorStarting = lipgloss.Color("#7c3aed")
	ColorRunning  = lipgloss.Color("#16a34a")
	ColorError    = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#06b6d4")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorTrack   = lipgloss.Color("#374151")
)

// StatusColor maps a lifecycle status string to its color.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "STARTING":
		return ColorStarting
	case "RUNNING":
		return ColorRunning
	case "ERROR":
		return ColorError
	default:
		return ColorStopped
	}
}

// StatusGlyph returns a glyph for a lifecycle status string.
func StatusGlyph(status string) string {
	switch status {
	case "STARTING":
		return "◎"
	case "RUNNING":
		return "●"
	case "ERROR":
		return "✗"
	default:
		return "○"
	}
}

// HealthColor colors a bar by its health.
func HealthColor(healthy bool) lipgloss.Color {
	if healthy {
		return ColorHealthy
	}
	return ColorDanger
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleAccent = lipgloss.NewStyle().
		Foreground(ColorAccent)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)
)

// PanelStyle is the bordered panel used by overlays.
func PanelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(ColorBorder)
}
