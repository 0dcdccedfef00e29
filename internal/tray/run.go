package tray

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/serialdisplay/internal/controller"
)

// eventBuffer bounds notifications queued for the menu. When it is full
// newer events are dropped; the repaint timer picks the state up anyway.
const eventBuffer = 16

// Run shows the menu until the user exits. The session is stopped on return.
func Run(ctrl *controller.Controller, opts Options) error {
	events := make(chan controller.Event, eventBuffer)
	unsubscribe := ctrl.OnStateChanged(func(ev controller.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()
	defer ctrl.Stop()

	m := NewModel(ctrl, events, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
