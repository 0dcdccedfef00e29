package tray

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/session"
)

const sparklineWidth = 20

// renderMenu renders the status line, ports, rates and Exit.
func (m Model) renderMenu() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("serialdisplay"))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	if line := m.renderMetrics(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.message != nil {
		msg, suggestion := describe(m.message)
		b.WriteString(ErrorStyle.Render("✗ " + msg))
		b.WriteString("\n")
		if suggestion != "" {
			b.WriteString(SuggestionStyle.Render("  " + suggestion))
			b.WriteString("\n")
		}
	}

	b.WriteString(SectionStyle.Render("Ports"))
	b.WriteString("\n")
	if len(m.ports) == 0 {
		label := "No ports available"
		if !m.scanned {
			label = "Scanning..."
		}
		b.WriteString(DisabledItemStyle.Render(label))
		b.WriteString("\n")
	}

	rateHeader := false
	for i, it := range m.items {
		if it.kind == itemRate && !rateHeader {
			b.WriteString(SectionStyle.Render("Refresh rate"))
			b.WriteString("\n")
			rateHeader = true
		}
		if it.kind == itemExit {
			b.WriteString("\n")
		}
		b.WriteString(m.renderItem(it, i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))

	return MenuStyle.Render(b.String())
}

// renderStatus renders "Status: Running on COM3 at 250ms" and its variants.
func (m Model) renderStatus() string {
	label := LabelStyle.Render("Status: ")

	switch m.state {
	case session.Running:
		return label + StatusRunningStyle.Render(SymbolRunning+" Running") +
			LabelStyle.Render(fmt.Sprintf(" on %s at %dms", m.port, m.rate))
	case session.Starting:
		return label + StatusStartingStyle.Render(SymbolStarting+" Starting") +
			LabelStyle.Render(" on "+m.port)
	}

	s := label + StatusStoppedStyle.Render(SymbolStopped+" Stopped")
	if m.lastErr != nil {
		s += ErrorStyle.Render(" · " + failureLabel(m.lastErr))
	}
	if m.port != "" {
		s += LabelStyle.Render(" (" + m.port + ")")
	}
	return s
}

// renderMetrics shows the last sample and its sparklines while streaming.
func (m Model) renderMetrics() string {
	if m.state != session.Running || !m.hasSample {
		return ""
	}
	cpu := float64(m.sample.CPU)
	mem := float64(m.sample.Memory)
	return fmt.Sprintf("%s %s %s   %s %s %s",
		LabelStyle.Render("CPU"),
		MetricStyle(cpu).Render(fmt.Sprintf("%3d%%", m.sample.CPU)),
		RenderSparkline(m.history.CPU(), sparklineWidth),
		LabelStyle.Render("MEM"),
		MetricStyle(mem).Render(fmt.Sprintf("%3d%%", m.sample.Memory)),
		RenderSparkline(m.history.Memory(), sparklineWidth),
	)
}

func (m Model) renderItem(it menuItem, atCursor bool) string {
	cursor := " "
	if atCursor {
		cursor = SymbolCursor
	}

	var marker, text string
	switch it.kind {
	case itemPort:
		text = it.port
		if it.port == m.port {
			marker = SymbolCurrent
		}
	case itemRate:
		text = fmt.Sprintf("%dms", it.rate)
		if it.rate == m.rate {
			marker = SymbolCurrent
		}
	case itemExit:
		text = "Exit"
	}
	if marker == "" {
		marker = " "
	}

	line := cursor + " " + marker + " " + text
	if atCursor {
		return CursorItemStyle.Render(line)
	}
	return ItemStyle.Render(line)
}

// failureLabel names the failure behind a stop for the status line.
func failureLabel(err error) string {
	switch errors.Code(err) {
	case errors.ErrPortUnavailable:
		return "port unavailable"
	case errors.ErrTransportLost:
		return "connection lost"
	default:
		return "error"
	}
}

// describe splits err into a headline and an optional suggestion.
func describe(err error) (string, string) {
	var sdErr *errors.Error
	if stderrors.As(err, &sdErr) {
		return sdErr.Message, sdErr.Suggestion
	}
	return err.Error(), ""
}

// renderHelpOverlay renders a centered box with every key binding.
func (m Model) renderHelpOverlay() string {
	h := m.help
	h.ShowAll = true

	box := MenuStyle.
		BorderForeground(ColorAccent).
		Padding(1, 2).
		Render(TitleStyle.Render("Keyboard Shortcuts") + "\n\n" +
			h.View(keys) + "\n\n" +
			LabelStyle.Render("Press ? to close"))

	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
