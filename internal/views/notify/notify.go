// Package notify keeps the scrollable log of session notifications.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gamestream/streamctl/internal/lifecycle"
	"github.com/gamestream/streamctl/internal/theme"
)

const maxEntries = 200

// Model holds the notification log.
type Model struct {
	Entries []lifecycle.Notification
	Offset  int // scroll offset from the bottom
}

func New() Model {
	return Model{}
}

// Add appends n and caps the buffer.
func (m *Model) Add(n lifecycle.Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	m.Entries = append(m.Entries, n)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Info logs a client-side message that did not come from the controller.
func (m *Model) Info(msg string) {
	m.Add(lifecycle.Notification{Level: lifecycle.LevelInfo, Message: msg})
}

func (m *Model) ScrollUp(n int) {
	m.Offset += n
	max := len(m.Entries) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
}

func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// Last returns the newest entry.
func (m Model) Last() (lifecycle.Notification, bool) {
	if len(m.Entries) == 0 {
		return lifecycle.Notification{}, false
	}
	return m.Entries[len(m.Entries)-1], true
}

// Toast renders the newest entry as a single line, or "".
func (m Model) Toast(width int) string {
	n, ok := m.Last()
	if !ok {
		return ""
	}
	return truncate(levelTag(n.Level)+" "+n.Message, width)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 6
	if visibleLines < 3 {
		visibleLines = 3
	}

	title := theme.StyleHeader.Render(" NOTIFICATIONS ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing yet.")
		return theme.PanelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(m.Entries) - m.Offset
	if end < 0 {
		end = 0
	}
	start := end - visibleLines
	if start < 0 {
		start = 0
	}

	var lines []string
	for _, n := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(n.Time.Format("15:04:05.000"))
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, levelTag(n.Level), truncate(n.Message, innerW-20)))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return theme.PanelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func levelTag(l lifecycle.Level) string {
	if l == lifecycle.LevelError {
		return lipgloss.NewStyle().Foreground(theme.ColorDanger).Width(4).Render("err")
	}
	return lipgloss.NewStyle().Foreground(theme.ColorAccent).Width(4).Render("info")
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
