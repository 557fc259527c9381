// Package app is the streamctl Bubble Tea model: it drives the lifecycle
// controller from keys and renders its state, notifications and stats.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/gamestream/streamctl/internal/client"
	"github.com/gamestream/streamctl/internal/history"
	"github.com/gamestream/streamctl/internal/lifecycle"
	"github.com/gamestream/streamctl/internal/telemetry"
	"github.com/gamestream/streamctl/internal/theme"
	"github.com/gamestream/streamctl/internal/views/help"
	"github.com/gamestream/streamctl/internal/views/notify"
	"github.com/gamestream/streamctl/internal/views/overlay"
	"github.com/gamestream/streamctl/internal/views/status"
)

// Controller is the part of lifecycle.Controller the UI drives.
type Controller interface {
	State() lifecycle.State
	Subscribe() (<-chan lifecycle.State, func())
	SelectRegions(regions []string)
	SetPendingSessionARN(arn string)
	CreateSession(ctx context.Context, applicationID, streamGroupID string, regions []string) error
	ReconnectSession(ctx context.Context, arn string) error
	CloseSession() error
}

// StatsOverlay is the sampler behind the stats overlay.
type StatsOverlay interface {
	telemetry.Overlay
	SetRunning(running bool)
	Stop()
}

// PerformanceFeed is the gateway performance websocket.
type PerformanceFeed interface {
	Subscribe(ctx context.Context, arn string) tea.Cmd
	ReadLoop() tea.Cmd
	Close()
}

type History interface {
	Record(ctx context.Context, e history.Entry) error
}

type Deps struct {
	Controller    Controller
	Stats         StatsOverlay
	Perf          PerformanceFeed
	History       History
	Bridge        *Bridge
	ApplicationID string
	StreamGroupID string
	GatewayURL    string
	Logger        zerolog.Logger
}

// Panel identifies which modal is open.
type Panel int

const (
	PanelNone Panel = iota
	PanelNotifications
	PanelHelp
)

// Input identifies which prompt is open.
type Input int

const (
	InputNone Input = iota
	InputReconnect
	InputRegions
)

type stateMsg struct {
	state lifecycle.State
	ok    bool
}

type opDoneMsg struct {
	op  string
	err error
}

type historyMsg struct {
	arn string
	err error
}

// Model is the root Bubble Tea model.
type Model struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	keys   KeyMap
	log    zerolog.Logger

	states      <-chan lifecycle.State
	unsubscribe func()

	width  int
	height int

	state   lifecycle.State
	panel   Panel
	input   Input
	prompt  textinput.Model
	perfARN string

	animating bool

	statusBar status.Model
	overlay   overlay.Model
	notes     notify.Model
}

func New(deps Deps) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.Bridge == nil {
		deps.Bridge = NewBridge()
	}
	states, unsubscribe := deps.Controller.Subscribe()

	prompt := textinput.New()
	prompt.CharLimit = 512
	prompt.Width = 72

	st := deps.Controller.State()
	bar := status.New(deps.GatewayURL)
	bar.State = st

	return Model{
		deps:        deps,
		ctx:         ctx,
		cancel:      cancel,
		keys:        DefaultKeyMap(),
		log:         deps.Logger,
		states:      states,
		unsubscribe: unsubscribe,
		state:       st,
		prompt:      prompt,
		statusBar:   bar,
		overlay:     overlay.New(),
		notes:       notify.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitState(), m.deps.Bridge.waitNote(), m.deps.Bridge.waitSample())
}

func (m Model) waitState() tea.Cmd {
	states := m.states
	return func() tea.Msg {
		st, ok := <-states
		return stateMsg{state: st, ok: ok}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.input != InputNone {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)

	case stateMsg:
		if !msg.ok {
			return m, nil
		}
		return m.applyState(msg.state)

	case noteMsg:
		m.notes.Add(lifecycle.Notification(msg))
		return m, m.deps.Bridge.waitNote()

	case sampleMsg:
		m.overlay.SetSample(telemetry.Sample(msg))
		anim := m.animate()
		return m, tea.Batch(m.deps.Bridge.waitSample(), anim)

	case opDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, lifecycle.ErrSuperseded) {
			m.log.Debug().Err(msg.err).Str("op", msg.op).Msg("operation failed")
		}
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Str("arn", msg.arn).Msg("record session history")
		}
		return m, nil

	case overlay.FrameMsg:
		if m.deps.Stats.IsVisible() && m.overlay.Step() {
			return m, overlay.FrameCmd()
		}
		m.animating = false
		return m, nil

	case client.PerfConnectedMsg:
		if msg.ARN != m.perfARN {
			return m, nil
		}
		m.statusBar.PerfLive = true
		m.overlay.PerfNote = ""
		return m, m.deps.Perf.ReadLoop()

	case client.PerfSampleMsg:
		if msg.ARN != m.perfARN {
			return m, nil
		}
		sample := msg.Sample
		m.overlay.SetPerformance(&sample)
		anim := m.animate()
		return m, tea.Batch(m.deps.Perf.ReadLoop(), anim)

	case client.PerfUnavailableMsg:
		// Not every control plane streams performance stats.
		if msg.ARN == m.perfARN {
			m.statusBar.PerfLive = false
			m.overlay.PerfNote = "performance stats unavailable"
		}
		m.log.Debug().Str("arn", msg.ARN).Str("reason", msg.Reason).Msg("performance feed unavailable")
		return m, nil

	case client.PerfClosedMsg:
		if msg.ARN == m.perfARN {
			m.statusBar.PerfLive = false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) applyState(st lifecycle.State) (tea.Model, tea.Cmd) {
	prev := m.state
	m.state = st
	m.statusBar.State = st
	cmds := []tea.Cmd{m.waitState()}

	running := st.Status == lifecycle.Running
	m.deps.Stats.SetRunning(running)

	if m.deps.Perf != nil {
		switch {
		case running && st.SessionARN != "" && st.SessionARN != m.perfARN:
			m.perfARN = st.SessionARN
			m.overlay.PerfNote = "connecting performance feed"
			cmds = append(cmds, m.deps.Perf.Subscribe(m.ctx, st.SessionARN))
		case !running && m.perfARN != "":
			m.deps.Perf.Close()
			m.perfARN = ""
			m.statusBar.PerfLive = false
			m.overlay.SetPerformance(nil)
			m.overlay.PerfNote = ""
		}
	}

	if st.LastSessionARN != "" && st.LastSessionARN != prev.LastSessionARN && m.deps.History != nil {
		cmds = append(cmds, m.recordHistory(st))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) recordHistory(st lifecycle.State) tea.Cmd {
	h, ctx := m.deps.History, m.ctx
	e := history.Entry{
		ARN:           st.LastSessionARN,
		StreamGroupID: st.StreamGroupID,
		ApplicationID: st.ApplicationID,
		Region:        st.Region,
		StartedAt:     time.Now(),
	}
	return func() tea.Msg {
		return historyMsg{arn: e.ARN, err: h.Record(ctx, e)}
	}
}

func (m *Model) animate() tea.Cmd {
	if m.animating || !m.deps.Stats.IsVisible() {
		return nil
	}
	m.animating = true
	return overlay.FrameCmd()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.panel != PanelNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.panel = PanelNone
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case m.panel == PanelNotifications && key.Matches(msg, m.keys.Up):
			m.notes.ScrollUp(1)
		case m.panel == PanelNotifications && key.Matches(msg, m.keys.Down):
			m.notes.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Create):
		if m.state.IsStarting {
			m.notes.Info("a session is already starting")
			return m, nil
		}
		return m, m.create()

	case key.Matches(msg, m.keys.Reconnect):
		if m.state.IsStarting {
			m.notes.Info("a session is already starting")
			return m, nil
		}
		value := m.state.PendingSessionARN
		if value == "" {
			value = m.state.LastSessionARN
		}
		return m.openInput(InputReconnect, "arn ", "arn:aws:gameliftstreams:...", value)

	case key.Matches(msg, m.keys.Regions):
		return m.openInput(InputRegions, "regions ", "us-west-2, us-east-2", strings.Join(m.state.Regions, ", "))

	case key.Matches(msg, m.keys.Close):
		ctrl := m.deps.Controller
		return m, func() tea.Msg { return opDoneMsg{op: "close", err: ctrl.CloseSession()} }

	case key.Matches(msg, m.keys.Stats):
		m.deps.Stats.Toggle()
		anim := m.animate()
		return m, anim

	case key.Matches(msg, m.keys.Notifications):
		m.panel = PanelNotifications
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.panel = PanelHelp
		return m, nil
	}
	return m, nil
}

func (m Model) create() tea.Cmd {
	ctrl, ctx := m.deps.Controller, m.ctx
	app, group := m.deps.ApplicationID, m.deps.StreamGroupID
	regions := append([]string(nil), m.state.Regions...)
	return func() tea.Msg {
		return opDoneMsg{op: "create", err: ctrl.CreateSession(ctx, app, group, regions)}
	}
}

func (m Model) openInput(kind Input, prompt, placeholder, value string) (tea.Model, tea.Cmd) {
	m.input = kind
	m.prompt.Prompt = prompt
	m.prompt.Placeholder = placeholder
	m.prompt.SetValue(value)
	m.prompt.CursorEnd()
	return m, m.prompt.Focus()
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m.quit()

	case key.Matches(msg, m.keys.Escape):
		m.closeInput()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		value := strings.TrimSpace(m.prompt.Value())
		kind := m.input
		m.closeInput()
		return m.submit(kind, value)
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.input = InputNone
	m.prompt.Blur()
	m.prompt.SetValue("")
}

func (m Model) submit(kind Input, value string) (tea.Model, tea.Cmd) {
	ctrl, ctx := m.deps.Controller, m.ctx
	switch kind {
	case InputReconnect:
		if value == "" {
			m.notes.Info("enter a session ARN to reconnect")
			return m, nil
		}
		ctrl.SetPendingSessionARN(value)
		return m, func() tea.Msg {
			return opDoneMsg{op: "reconnect", err: ctrl.ReconnectSession(ctx, value)}
		}

	case InputRegions:
		regions := ParseRegions(value)
		if len(regions) == 0 {
			m.notes.Info("at least one region is required")
			return m, nil
		}
		ctrl.SelectRegions(regions)
	}
	return m, nil
}

// ParseRegions splits a comma or space separated region list.
func ParseRegions(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	return lifecycle.DedupeRegions(fields)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	m.deps.Stats.Stop()
	if m.deps.Perf != nil {
		m.deps.Perf.Close()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

// View renders the full UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.panel {
	case PanelNotifications:
		return m.notes.View(m.width, m.height)
	case PanelHelp:
		return help.Render(m.keys.Bindings(), m.width)
	}

	sections := []string{m.statusBar.View(), status.Summary(m.state)}
	if toast := m.notes.Toast(m.width - 4); toast != "" {
		sections = append(sections, "  "+toast)
	}
	if m.input != InputNone {
		sections = append(sections, "", "  "+m.prompt.View(), theme.StyleDimmed.Render("  enter:submit  esc:cancel"))
	}
	if m.deps.Stats.IsVisible() {
		sections = append(sections, m.overlay.View(m.width))
	}
	sections = append(sections, theme.StyleDimmed.Render("  c:create  r:reconnect  x:close  g:regions  s:stats  n:notifications  ?:help  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
