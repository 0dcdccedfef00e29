package tray

import "github.com/charmbracelet/lipgloss"

// Menu color palette
const (
	ColorSurfaceBg = lipgloss.Color("#12121A")
	ColorBorder    = lipgloss.Color("#2A2A4A")

	ColorHealthy  = lipgloss.Color("#39FF14")
	ColorWarning  = lipgloss.Color("#FFAA00")
	ColorCritical = lipgloss.Color("#FF0055")

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent = lipgloss.Color("#FF2E97")
	ColorGraph  = lipgloss.Color("#00FFFF")
)

// Thresholds for metric severity levels
const (
	WarningThreshold  = 70
	CriticalThreshold = 90
)

var (
	MenuStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary).
			Bold(true).
			MarginTop(1)

	ItemStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			PaddingLeft(2)

	CursorItemStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			PaddingLeft(2)

	DisabledItemStyle = lipgloss.NewStyle().
				Foreground(ColorTextMuted).
				Italic(true).
				PaddingLeft(2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	StatusRunningStyle = lipgloss.NewStyle().
				Foreground(ColorHealthy).
				Bold(true)

	StatusStartingStyle = lipgloss.NewStyle().
				Foreground(ColorWarning).
				Bold(true)

	StatusStoppedStyle = lipgloss.NewStyle().
				Foreground(ColorTextMuted).
				Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorCritical)

	SuggestionStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary).
			Italic(true)
)

// Status glyphs
const (
	SymbolRunning  = "◉"
	SymbolStarting = "◐"
	SymbolStopped  = "◌"
	SymbolCurrent  = "●"
	SymbolCursor   = "›"
)

// MetricColor returns green below 70%, amber below 90%, red otherwise.
func MetricColor(percent float64) lipgloss.Color {
	switch {
	case percent >= CriticalThreshold:
		return ColorCritical
	case percent >= WarningThreshold:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// MetricStyle returns a style colored by MetricColor.
func MetricStyle(percent float64) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(MetricColor(percent))
}
