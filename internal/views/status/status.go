package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gamestream/streamctl/internal/lifecycle"
	"github.com/gamestream/streamctl/internal/session"
	"github.com/gamestream/streamctl/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	State      lifecycle.State
	GatewayURL string
	PerfLive   bool
	Width      int
}

func New(gatewayURL string) Model {
	return Model{GatewayURL: gatewayURL}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	st := m.State
	status := string(st.Status)
	if status == "" {
		status = string(lifecycle.Stopped)
	}

	statusStr := lipgloss.NewStyle().
		Foreground(theme.StatusColor(status)).
		Render(theme.StatusGlyph(status) + " " + status)

	parts := []string{statusStr}
	if st.SessionARN != "" {
		parts = append(parts, "session "+theme.StyleAccent.Render(session.SessionIDFromARN(st.SessionARN)))
	}
	region := st.Region
	if region == "" {
		region = st.ActiveRegion()
	}
	if region != "" {
		parts = append(parts, region)
	}
	if st.InputEnabled {
		parts = append(parts, "input")
	}
	if m.PerfLive {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("perf"))
	}
	parts = append(parts, theme.StyleDimmed.Render(m.GatewayURL))

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := strings.Join(parts, sep)

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

// Summary is the body shown under the status bar.
func Summary(st lifecycle.State) string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "  %s %s\n", theme.StyleDimmed.Width(14).Render(label), value)
	}
	row("Application", st.ApplicationID)
	row("Stream group", st.StreamGroupID)
	row("Regions", strings.Join(st.Regions, ", "))
	row("Session", st.SessionARN)
	row("Last created", st.LastSessionARN)
	row("Reconnect ARN", st.PendingSessionARN)
	if st.LastError != "" {
		fmt.Fprintf(&b, "\n  %s\n", theme.StyleError.Render(st.LastError))
	}
	return b.String()
}
