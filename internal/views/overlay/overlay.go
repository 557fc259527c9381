// Package overlay renders the stats overlay: transport metrics and the
// session's performance stats as animated bars.
package overlay

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/gamestream/streamctl/internal/session"
	"github.com/gamestream/streamctl/internal/telemetry"
	"github.com/gamestream/streamctl/internal/theme"
)

const (
	barWidth   = 24
	labelWidth = 12
	valueWidth = 20
	fps        = 60
	// settled is how close a spring must be to its target to stop animating.
	settled = 0.002
)

// FrameMsg advances the bar animation by one frame.
type FrameMsg struct{}

// FrameCmd schedules the next animation frame.
func FrameCmd() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

type motion struct {
	pos, vel float64
}

// Model holds the latest bars and their animated fill.
type Model struct {
	Stream      []telemetry.Bar
	Performance []telemetry.Bar
	PerfNote    string

	spring harmonica.Spring
	motion map[string]*motion
}

func New() Model {
	return Model{
		Stream:      telemetry.StreamBars(telemetry.Sample{}),
		Performance: telemetry.PerformanceBars(nil),
		spring:      harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.8),
		motion:      make(map[string]*motion),
	}
}

// SetSample replaces the transport bars.
func (m *Model) SetSample(s telemetry.Sample) {
	m.Stream = telemetry.StreamBars(s)
}

// SetPerformance replaces the performance bars. A nil sample clears them.
func (m *Model) SetPerformance(p *session.PerformanceStats) {
	m.Performance = telemetry.PerformanceBars(p)
}

// Step moves every bar one frame toward its fill and reports whether any is
// still moving.
func (m *Model) Step() bool {
	moving := false
	for _, b := range m.all() {
		mo := m.motionFor(b.Label)
		mo.pos, mo.vel = m.spring.Update(mo.pos, mo.vel, b.Fill)
		if math.Abs(mo.pos-b.Fill) > settled || math.Abs(mo.vel) > settled {
			moving = true
		} else {
			mo.pos, mo.vel = b.Fill, 0
		}
	}
	return moving
}

func (m *Model) motionFor(label string) *motion {
	if m.motion == nil {
		m.motion = make(map[string]*motion)
	}
	mo, ok := m.motion[label]
	if !ok {
		mo = &motion{}
		m.motion[label] = mo
	}
	return mo
}

func (m Model) all() []telemetry.Bar {
	out := make([]telemetry.Bar, 0, len(m.Stream)+len(m.Performance))
	out = append(out, m.Stream...)
	return append(out, m.Performance...)
}

// View renders the overlay panel.
func (m Model) View(width int) string {
	innerW := width - 4
	if innerW < labelWidth+barWidth+valueWidth {
		innerW = labelWidth + barWidth + valueWidth
	}

	lines := []string{theme.StyleHeader.Render(" STREAM STATS "), ""}
	for _, b := range m.Stream {
		lines = append(lines, m.row(b))
	}
	lines = append(lines, "", theme.StyleHeader.Render(" PERFORMANCE "))
	if m.PerfNote != "" {
		lines = append(lines, theme.StyleDimmed.Render("  "+m.PerfNote))
	}
	lines = append(lines, "")
	for _, b := range m.Performance {
		lines = append(lines, m.row(b))
	}
	lines = append(lines, "", theme.StyleDimmed.Render("s:hide stats"))

	return theme.PanelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) row(b telemetry.Bar) string {
	fill := b.Fill
	if mo, ok := m.motion[b.Label]; ok {
		fill = mo.pos
	}
	label := theme.StyleDimmed.Width(labelWidth).Render(b.Label)
	value := lipgloss.NewStyle().Width(valueWidth).Render(b.Text)
	return fmt.Sprintf("%s %s %s", label, RenderBar(b, fill, barWidth), value)
}

// RenderBar draws a bar of width cells filled to fill. Absent bars are empty.
func RenderBar(b telemetry.Bar, fill float64, width int) string {
	if b.Absent {
		return lipgloss.NewStyle().Foreground(theme.ColorTrack).Render(strings.Repeat("░", width))
	}
	filled := int(math.Round(math.Max(0, math.Min(fill, 1)) * float64(width)))
	on := lipgloss.NewStyle().Foreground(theme.HealthColor(b.Healthy)).Render(strings.Repeat("█", filled))
	off := lipgloss.NewStyle().Foreground(theme.ColorTrack).Render(strings.Repeat("░", width-filled))
	return on + off
}
