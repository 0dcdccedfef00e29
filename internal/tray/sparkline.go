package tray

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters representing 8 vertical levels (lowest to highest).
var sparklineBlocks = []rune("▁▂▃▄▅▆▇█")

// RenderSparkline draws the most recent width percentages on a fixed 0-100
// scale, colored by the last value.
func RenderSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	var sb strings.Builder
	levels := len(sparklineBlocks)
	for _, v := range data {
		level := int(v / 100 * float64(levels-1))
		if level < 0 {
			level = 0
		} else if level >= levels {
			level = levels - 1
		}
		sb.WriteRune(sparklineBlocks[level])
	}

	last := data[len(data)-1]
	return lipgloss.NewStyle().Foreground(MetricColor(last)).Render(sb.String())
}
