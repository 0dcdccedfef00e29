package tray

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap defines the menu key bindings. It satisfies help.KeyMap.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Toggle  key.Binding
	Rescan  key.Binding
	Help    key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "select"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start/stop"),
	),
	Rescan: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rescan ports"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "exit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Toggle, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Toggle, k.Rescan},
		{k.Help, k.Dismiss, k.Quit},
	}
}

// HandleKeyMsg processes keyboard input. It returns true if the key was handled.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	// Help toggle takes priority
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}

	switch {
	case key.Matches(msg, keys.Dismiss):
		m.showHelp = false
		m.message = nil
		return true, nil

	case key.Matches(msg, keys.Quit):
		return true, m.exitCmd()

	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
		return true, nil

	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
		return true, nil

	case key.Matches(msg, keys.Select):
		return true, m.activate()

	case key.Matches(msg, keys.Toggle):
		return true, m.toggleCmd()

	case key.Matches(msg, keys.Rescan):
		return true, m.scanPortsCmd()
	}

	return false, nil
}
