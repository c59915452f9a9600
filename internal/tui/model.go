package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/launcher"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	powerQueryTimeout   = 5 * time.Second
	launchTimeout       = 5 * time.Second
	minListWidth        = 36
)

// Controller is the coordinator surface the model drives.
type Controller interface {
	Refresh()
	TogglePower(on bool) error
	Command(kind device.CommandKind, id string) error
	CurrentPowerState(ctx context.Context) bool
}

// Dispatcher delivers coordinator results. coordinator.Foreground satisfies it.
type Dispatcher interface {
	SubscribeDevices(fn func([]device.Record))
	SubscribeReports(fn func(coordinator.CommandReport))
	Tick() bool
}

// Launcher opens the system Bluetooth manager.
type Launcher interface {
	Launch(ctx context.Context) (string, error)
}

// Deps are the model's collaborators. Launcher and TickInterval are optional.
type Deps struct {
	Controller   Controller
	Foreground   Dispatcher
	Settings     coordinator.SettingsSource
	Launcher     Launcher
	TickInterval time.Duration
}

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// Model is the root Bubble Tea model.
type Model struct {
	deps    Deps
	spinner spinner.Model

	devices  []device.Record
	received bool
	cursor   int
	powered  bool
	status   string
	width    int
}

// New creates the model and subscribes it to the dispatcher. Subscribers
// run inside Update, on the program's goroutine.
func New(deps Deps) *Model {
	if deps.TickInterval <= 0 {
		deps.TickInterval = defaultTickInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorInfo)

	m := &Model{deps: deps, spinner: s}
	deps.Foreground.SubscribeDevices(m.setDevices)
	deps.Foreground.SubscribeReports(m.applyReport)
	return m
}

// Run starts the terminal program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

// Init requests the first enumeration and reads the adapter power state.
func (m *Model) Init() tea.Cmd {
	m.deps.Controller.Refresh()
	return tea.Batch(
		m.spinner.Tick,
		m.tick(),
		queryPowerCmd(m.deps.Controller),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.deps.Foreground.Tick()
		return m, m.tick()

	case powerStateMsg:
		m.powered = msg.powered
		return m, nil

	case launchResultMsg:
		switch {
		case errors.Is(msg.err, launcher.ErrNoManager):
			m.status = "no Bluetooth manager installed"
		case msg.err != nil:
			m.status = "launch failed: " + msg.err.Error()
		default:
			m.status = "opened " + msg.name
		}
		return m, nil

	case submitErrMsg:
		m.status = "busy: " + msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		if m.received {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.devices)-1 {
			m.cursor++
		}
	case "r":
		m.deps.Controller.Refresh()
		m.status = statusRefreshing
	case "b":
		return m, submit(func() error { return m.deps.Controller.TogglePower(!m.powered) })
	case "enter", " ":
		return m, m.activateSelected()
	case "s":
		if m.deps.Launcher != nil {
			return m, launchCmd(m.deps.Launcher)
		}
	}
	return m, nil
}

// activateSelected toggles the connection of a paired device or pairs an
// unpaired one.
func (m *Model) activateSelected() tea.Cmd {
	if m.cursor >= len(m.devices) {
		return nil
	}
	d := m.devices[m.cursor]

	kind := device.CommandPair
	if d.Paired {
		kind = device.CommandConnect
		if d.Connected {
			kind = device.CommandDisconnect
		}
	}
	return submit(func() error { return m.deps.Controller.Command(kind, d.ID) })
}

// statusRefreshing is shown from a manual refresh until the next list.
const statusRefreshing = "refreshing"

// setDevices replaces the list, keeping the selection on the same device
// when it is still present.
func (m *Model) setDevices(records []device.Record) {
	selected := ""
	if m.cursor < len(m.devices) {
		selected = m.devices[m.cursor].ID
	}

	m.devices = records
	m.received = true
	if m.status == statusRefreshing {
		m.status = ""
	}
	m.cursor = 0
	for i, d := range records {
		if d.ID == selected {
			m.cursor = i
			break
		}
	}
}

func (m *Model) applyReport(r coordinator.CommandReport) {
	switch r.Op {
	case coordinator.OpPowerOn:
		m.powered = true
	case coordinator.OpPowerOff:
		m.powered = false
	}

	desc := string(r.Op)
	if r.DeviceID != "" {
		desc += " " + r.DeviceID
	}
	if r.Simulated {
		desc += " (simulated)"
	}
	m.status = desc
}

func (m *Model) simulated() bool {
	return m.deps.Settings != nil && !m.deps.Settings.FunctionalityEnabled()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.deps.TickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// submit runs a non-blocking coordinator request. Only a refused request
// produces a message.
func submit(fn func() error) tea.Cmd {
	if err := fn(); err != nil {
		return func() tea.Msg { return submitErrMsg{err: err} }
	}
	return nil
}

func queryPowerCmd(c Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), powerQueryTimeout)
		defer cancel()
		return powerStateMsg{powered: c.CurrentPowerState(ctx)}
	}
}

func launchCmd(l Launcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), launchTimeout)
		defer cancel()
		name, err := l.Launch(ctx)
		return launchResultMsg{name: name, err: err}
	}
}

// View renders the widget.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch {
	case !m.received:
		b.WriteString(m.spinner.View() + " Loading devices...")
	case len(m.devices) == 0:
		b.WriteString(addrStyle.Render("No devices"))
	default:
		for i, d := range m.devices {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(m.row(d, i == m.cursor))
		}
	}

	if m.status != "" {
		b.WriteString("\n\n" + statusStyle.Render(m.status))
	}
	b.WriteString("\n\n" + helpStyle.Render("↑/↓ move • enter connect/pair • b power • r refresh • s settings • q quit"))

	width := max(m.width-4, minListWidth)
	return frameStyle.Width(width).Render(b.String())
}

func (m *Model) header() string {
	state := offStyle.Render("Off")
	if m.powered {
		state = onStyle.Render("On")
	}
	h := titleStyle.Render("Bluetooth") + " " + state
	if m.simulated() {
		h += " " + testStyle.Render("(UI Test)")
	}
	return h
}

func (m *Model) row(d device.Record, selected bool) string {
	pointer := "  "
	name := nameStyle.Render(d.Name)
	if selected {
		pointer = selectedStyle.Render("> ")
		name = selectedStyle.Render(d.Name)
	}

	action := "[Pair]"
	if d.Paired {
		action = "[ off ]"
		if d.Connected {
			action = "[ on  ]"
		}
	}

	return fmt.Sprintf("%s%s %s  %s\n    %s",
		pointer, d.Category.Glyph(), name, action, addrStyle.Render(d.ID))
}
