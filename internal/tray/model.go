package tray

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/serialdisplay/internal/controller"
	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
	"github.com/rileyhilliard/serialdisplay/internal/session"
)

// DefaultRates are the refresh-rate choices shown when none are configured.
var DefaultRates = []int{100, 250, 500, 750, 1000}

// repaintInterval is how often the menu re-reads the latest sample.
const repaintInterval = 500 * time.Millisecond

// Controller is the command surface the menu drives.
// *controller.Controller satisfies it.
type Controller interface {
	ListAvailablePorts() ([]string, error)
	CurrentState() session.State
	Port() string
	RefreshRate() int
	LastError() error
	LastSample() (metrics.Sample, bool)
	Start(port string) error
	Stop()
	SetPort(port string) error
	SetRefreshRate(ms int) error
}

// Options configures the menu.
type Options struct {
	// Rates are the refresh-rate choices in milliseconds.
	Rates []int
	// Repaint overrides the sample refresh interval.
	Repaint     time.Duration
	HistorySize int
}

type itemKind int

const (
	itemPort itemKind = iota
	itemRate
	itemExit
)

// menuItem is one selectable row.
type menuItem struct {
	kind itemKind
	port string
	rate int
}

// Model is the Bubble Tea model for the status menu.
type Model struct {
	ctrl     Controller
	events   <-chan controller.Event
	rates    []int
	interval time.Duration

	ports    []string
	portsErr error
	scanned  bool
	items    []menuItem
	cursor   int

	state     session.State
	port      string
	rate      int
	lastErr   error
	sample    metrics.Sample
	hasSample bool
	history   *History

	// message is the failure of the last user-initiated command.
	message error

	help     help.Model
	showHelp bool
	width    int
	height   int
	quitting bool
}

// eventMsg carries a controller notification.
type eventMsg controller.Event

// tickMsg signals a periodic repaint.
type tickMsg time.Time

// portsMsg carries a fresh port enumeration.
type portsMsg struct {
	ports []string
	err   error
}

// actionMsg reports the outcome of a user command.
type actionMsg struct {
	err error
}

// exitMsg is sent once the session has been stopped for exit.
type exitMsg struct{}

// NewModel creates a menu over ctrl. events may be nil, in which case the
// menu only refreshes on its repaint timer.
func NewModel(ctrl Controller, events <-chan controller.Event, opts Options) Model {
	rates := opts.Rates
	if len(rates) == 0 {
		rates = DefaultRates
	}
	interval := opts.Repaint
	if interval <= 0 {
		interval = repaintInterval
	}

	m := Model{
		ctrl:     ctrl,
		events:   events,
		rates:    append([]int(nil), rates...),
		interval: interval,
		history:  NewHistory(opts.HistorySize),
		help:     help.New(),
	}
	m.sync()
	m.rebuildItems()
	return m
}

// Init scans ports and starts listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.scanPortsCmd(),
		m.waitForEvent(),
		m.tickCmd(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case eventMsg:
		m.sync()
		return m, tea.Batch(m.scanPortsCmd(), m.waitForEvent())

	case tickMsg:
		m.sync()
		return m, m.tickCmd()

	case portsMsg:
		first := !m.scanned
		m.scanned = true
		m.ports = msg.ports
		m.portsErr = msg.err
		m.rebuildItems()
		if first {
			m.cursor = 0
		}

	case actionMsg:
		m.message = msg.err
		m.sync()

	case exitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the menu.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderMenu()
}

// sync re-reads the controller's current values.
func (m *Model) sync() {
	m.state = m.ctrl.CurrentState()
	m.port = m.ctrl.Port()
	m.rate = m.ctrl.RefreshRate()
	m.lastErr = m.ctrl.LastError()

	if s, ok := m.ctrl.LastSample(); ok {
		m.sample = s
		m.hasSample = true
		m.history.Push(s)
	}
}

// rebuildItems regenerates the selectable rows, keeping the cursor on the
// same item when it still exists.
func (m *Model) rebuildItems() {
	var current *menuItem
	if m.cursor >= 0 && m.cursor < len(m.items) {
		it := m.items[m.cursor]
		current = &it
	}

	items := make([]menuItem, 0, len(m.ports)+len(m.rates)+1)
	for _, p := range m.ports {
		items = append(items, menuItem{kind: itemPort, port: p})
	}
	for _, r := range m.rates {
		items = append(items, menuItem{kind: itemRate, rate: r})
	}
	items = append(items, menuItem{kind: itemExit})
	m.items = items

	m.cursor = 0
	if current != nil {
		for i, it := range items {
			if it == *current {
				m.cursor = i
				break
			}
		}
	}
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor > len(m.items)-1 {
		m.cursor = len(m.items) - 1
	}
}

// activate runs the item under the cursor.
func (m *Model) activate() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	it := m.items[m.cursor]
	switch it.kind {
	case itemPort:
		return m.selectPortCmd(it.port)
	case itemRate:
		return m.setRateCmd(it.rate)
	case itemExit:
		return m.exitCmd()
	}
	return nil
}

// selectPortCmd switches streaming to port, starting the session if needed.
// SetPort restarts an active session; a session that is stopped, including
// one that failed just before the click, is started afterwards.
func (m *Model) selectPortCmd(port string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.SetPort(port); err != nil {
			return actionMsg{err: err}
		}
		if ctrl.CurrentState() == session.Stopped {
			return actionMsg{err: ctrl.Start(port)}
		}
		return actionMsg{}
	}
}

func (m *Model) setRateCmd(ms int) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return actionMsg{err: ctrl.SetRefreshRate(ms)}
	}
}

// toggleCmd stops an active session or starts a stopped one on the
// selected port.
func (m *Model) toggleCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if ctrl.CurrentState() != session.Stopped {
			ctrl.Stop()
			return actionMsg{}
		}
		if ctrl.Port() == "" {
			return actionMsg{err: errors.New(errors.ErrPortUnavailable,
				"No port selected",
				"Pick a port from the list")}
		}
		return actionMsg{err: ctrl.Start("")}
	}
}

// exitCmd stops the session before the program quits.
func (m *Model) exitCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Stop()
		return exitMsg{}
	}
}

func (m *Model) scanPortsCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ports, err := ctrl.ListAvailablePorts()
		return portsMsg{ports: ports, err: err}
	}
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
