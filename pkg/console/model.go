// Package console is the operator terminal UI. It follows the daemon event
// stream, shows the session status and forwards the manual demo trigger.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/pkg/events"
	"github.com/charlie0129/gazectl/pkg/session"
)

const (
	refreshInterval   = 5 * time.Second
	reconnectInterval = 2 * time.Second
)

// API is the part of the daemon client the console needs.
type API interface {
	GetStatus() (*session.Status, error)
	TriggerDemo() (string, error)
	StartCalibration() (string, error)
	StreamEvents(ctx context.Context) (<-chan events.Event, error)
}

type statusMsg struct {
	st  *session.Status
	err error
}

type streamMsg struct {
	ch  <-chan events.Event
	err error
}

type eventMsg struct{ ev events.Event }

type streamClosedMsg struct{}

type actionMsg struct {
	msg string
	err error
}

type tickMsg time.Time

type reconnectMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	api    API
	ctx    context.Context
	cancel context.CancelFunc
	keys   KeyMap

	width int

	status    *session.Status
	statusErr error
	streaming bool
	lastEvent string
	eyeFrames map[int]int
	message   string
	failed    bool
}

func New(api API) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		api:       api,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		eyeFrames: map[int]int{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.connect(), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case statusMsg:
		m.statusErr = msg.err
		if msg.err == nil {
			m.status = msg.st
		}
		return m, nil

	case streamMsg:
		if msg.err != nil {
			logrus.Debugf("event stream unavailable: %v", msg.err)
			m.streaming = false
			return m, reconnect()
		}
		m.streaming = true
		return m, waitEvent(msg.ch)

	case eventMsg:
		m.applyEvent(msg.ev)
		return m, m.fetchStatus()

	case streamClosedMsg:
		m.streaming = false
		return m, reconnect()

	case reconnectMsg:
		return m, m.connect()

	case actionMsg:
		m.failed = msg.err != nil
		if msg.err != nil {
			m.message = msg.err.Error()
		} else {
			m.message = msg.msg
		}
		return m, m.fetchStatus()

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tick())
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Demo):
		m.message = "starting demo..."
		m.failed = false
		return m, m.action(m.api.TriggerDemo)
	case key.Matches(msg, m.keys.Calibrate):
		m.message = "requesting calibration..."
		m.failed = false
		return m, m.action(m.api.StartCalibration)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchStatus()
	}
	return m, nil
}

// applyEvent updates what the event carries without waiting for a refresh.
func (m *Model) applyEvent(ev events.Event) {
	m.lastEvent = ev.Name
	switch ev.Name {
	case events.StatusChanged:
		p, err := events.DecodeAs[events.StatusChangedEvent](ev)
		if err != nil || m.status == nil {
			return
		}
		m.status.Text = p.Text
		m.status.Tag = session.Tag(p.Tag)
	case events.EyeFrame:
		p, err := events.DecodeAs[events.EyeFrameEvent](ev)
		if err != nil {
			return
		}
		m.eyeFrames[p.Eye] = p.Frames
	}
}

func (m Model) fetchStatus() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		st, err := api.GetStatus()
		return statusMsg{st: st, err: err}
	}
}

func (m Model) connect() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		ch, err := api.StreamEvents(ctx)
		return streamMsg{ch: ch, err: err}
	}
}

func (m Model) action(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		msg, err := fn()
		return actionMsg{msg: strings.Trim(strings.TrimSpace(msg), `"`), err: err}
	}
}

func waitEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func reconnect() tea.Cmd {
	return tea.Tick(reconnectInterval, func(time.Time) tea.Msg { return reconnectMsg{} })
}

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06b6d4"))
	styleLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")).Width(14)
	styleText   = lipgloss.NewStyle().Bold(true)
	styleDimmed = lipgloss.NewStyle().Foreground(lipgloss.Color("#4b5563"))
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	styleBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("gazectl"))
	if m.streaming {
		b.WriteString(" " + styleOK.Render("live"))
	} else {
		b.WriteString(" " + styleDimmed.Render("polling"))
	}
	b.WriteString("\n\n")

	if m.status == nil {
		if m.statusErr != nil {
			b.WriteString(styleError.Render("daemon unavailable: " + m.statusErr.Error()))
		} else {
			b.WriteString("connecting to daemon...")
		}
		b.WriteString("\n")
	} else {
		b.WriteString(styleBox.Render(m.renderStatus()))
		b.WriteString("\n")
	}

	if m.message != "" {
		style := styleOK
		if m.failed {
			style = styleError
		}
		b.WriteString(style.Render(m.message) + "\n")
	}

	var help []string
	for _, k := range m.keys.help() {
		h := k.Help()
		help = append(help, h.Key+":"+h.Desc)
	}
	b.WriteString(styleDimmed.Render("  " + strings.Join(help, "  ")))
	return b.String()
}

func (m Model) renderStatus() string {
	st := m.status
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, styleLabel.Render(label), value)
	}

	text := st.Text
	if text == "" {
		text = styleDimmed.Render("(empty)")
	}
	scene := st.Scene
	if scene == "" {
		scene = "-"
	}
	sceneLine := fmt.Sprintf("%s (%s)", scene, st.SceneStatus)
	if st.PendingLoad {
		sceneLine += " load queued"
	}
	if st.PendingUnload {
		sceneLine += " unload queued"
	}

	eyes := "off"
	if st.EyeImages {
		eyes = "on"
		if len(m.eyeFrames) > 0 {
			eyes = fmt.Sprintf("on, frames %d/%d", m.eyeFrames[0], m.eyeFrames[1])
		}
	}

	rows := []string{
		row("Status", styleText.Render(text)),
		row("State", string(st.State)),
		row("Tag", string(st.Tag)),
		row("Mode", st.CalibrationMode),
		row("Scene", sceneLine),
		row("Eye images", eyes),
		row("Previews", fmt.Sprintf("%d batches, %d markers", st.PreviewBatches, st.PreviewMarkers)),
		row("Session", styleDimmed.Render(st.SessionID)),
	}
	if m.lastEvent != "" {
		rows = append(rows, row("Last event", m.lastEvent))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Run shows the console until the operator quits.
func Run(api API) error {
	m := New(api)
	defer m.cancel()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
