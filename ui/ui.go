// Package ui provides the terminal remote control for a readaloud server.
package ui

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/muesli/reflow/truncate"
)

const reconnectDelay = 2 * time.Second

// Controller is the part of the server client the UI drives.
type Controller interface {
	State(ctx context.Context) (playback.StateResponse, error)
	Toggle(ctx context.Context) (playback.StateResponse, error)
	Stop(ctx context.Context) (playback.StateResponse, error)
	SeekSeconds(ctx context.Context, seconds float64) (playback.StateResponse, error)
	SeekPercent(ctx context.Context, percent float64) (playback.StateResponse, error)
	SetSpeed(ctx context.Context, speed float64, wait bool) (playback.StateResponse, error)
	Watch(ctx context.Context, fn func(playback.StateResponse)) error
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, ctrl Controller) *tea.Program {
	log.Debug("Starting watch", "addr", cfg.Addr)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return tea.NewProgram(newModel(cfg, ctrl), opts...)
}

type (
	stateMsg struct {
		state    playback.StateResponse
		streamed bool
	}
	errMsg         struct{ err error }
	streamEndedMsg struct{ err error }
	reconnectMsg   struct{}
)

type model struct {
	cfg     Config
	ctrl    Controller
	ctx     context.Context
	cancel  context.CancelFunc
	status  *StatusDisplay
	keys    keyMap
	help    help.Model
	updates chan playback.StateResponse

	width     int
	connected bool
	err       error
}

func newModel(cfg Config, ctrl Controller) model {
	if cfg.SeekStep <= 0 {
		cfg.SeekStep = 10
	}
	if cfg.SpeedStep <= 0 {
		cfg.SpeedStep = 0.25
	}
	ctx, cancel := context.WithCancel(context.Background())
	return model{
		cfg:     cfg,
		ctrl:    ctrl,
		ctx:     ctx,
		cancel:  cancel,
		status:  NewStatusDisplay(),
		keys:    newKeyMap(),
		help:    help.New(),
		updates: make(chan playback.StateResponse, 16),
		width:   60,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.command(m.ctrl.State), m.watch(), m.waitForState())
}

// watch streams states into m.updates until the connection ends.
func (m model) watch() tea.Cmd {
	return func() tea.Msg {
		err := m.ctrl.Watch(m.ctx, func(s playback.StateResponse) {
			select {
			case m.updates <- s:
			case <-m.ctx.Done():
			}
		})
		return streamEndedMsg{err: err}
	}
}

func (m model) waitForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.updates:
			return stateMsg{state: s, streamed: true}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m model) command(fn func(context.Context) (playback.StateResponse, error)) tea.Cmd {
	return func() tea.Msg {
		state, err := fn(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg{state: state}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case stateMsg:
		m.status.Update(msg.state)
		m.err = nil
		if msg.streamed {
			m.connected = true
			return m, m.waitForState()
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case streamEndedMsg:
		m.connected = false
		if msg.err != nil {
			m.err = msg.err
		}
		if m.ctx.Err() != nil {
			return m, nil
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, tea.Batch(m.command(m.ctrl.State), m.watch())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.status.State()
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Toggle):
		return m, m.command(m.ctrl.Toggle)
	case key.Matches(msg, m.keys.Stop):
		return m, m.command(m.ctrl.Stop)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.command(m.ctrl.State)
	case key.Matches(msg, m.keys.Back):
		target := max(state.Position-m.cfg.SeekStep, 0)
		return m, m.command(func(ctx context.Context) (playback.StateResponse, error) {
			return m.ctrl.SeekSeconds(ctx, target)
		})
	case key.Matches(msg, m.keys.Forward):
		target := min(state.Position+m.cfg.SeekStep, state.Duration)
		return m, m.command(func(ctx context.Context) (playback.StateResponse, error) {
			return m.ctrl.SeekSeconds(ctx, target)
		})
	case key.Matches(msg, m.keys.Slower), key.Matches(msg, m.keys.Faster):
		step := m.cfg.SpeedStep
		if key.Matches(msg, m.keys.Slower) {
			step = -step
		}
		speed := state.Speed + step
		return m, m.command(func(ctx context.Context) (playback.StateResponse, error) {
			return m.ctrl.SetSpeed(ctx, speed, false)
		})
	case key.Matches(msg, m.keys.JumpTo):
		digit, err := strconv.Atoi(msg.String())
		if err != nil {
			return m, nil
		}
		return m, m.command(func(ctx context.Context) (playback.StateResponse, error) {
			return m.ctrl.SeekPercent(ctx, float64(digit*10))
		})
	}
	return m, nil
}

var (
	appStyle       = lipgloss.NewStyle().Padding(1, 2)
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DB954"))
)

func (m model) View() string {
	width := max(m.width-4, 20)

	conn := dimStyle.Render("○ connecting to " + m.cfg.Addr)
	if m.connected {
		conn = connectedStyle.Render("● " + m.cfg.Addr)
	}

	out := m.status.DetailedStatus(width) + "\n\n" + conn
	if m.err != nil {
		msg := truncate.StringWithTail(m.err.Error(), uint(width), "...") //nolint:gosec
		out += "\n" + errorStyle.Render(msg)
	}
	out += "\n\n" + m.help.View(m.keys)
	return appStyle.Render(out)
}
