package tray

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestRenderSparkline(t *testing.T) {
	tests := []struct {
		name  string
		data  []float64
		width int
		want  string
	}{
		{name: "empty", data: nil, width: 10, want: ""},
		{name: "zero width", data: []float64{50}, width: 0, want: ""},
		{name: "full range", data: []float64{0, 100}, width: 10, want: "▁█"},
		{name: "clamped", data: []float64{-20, 150}, width: 10, want: "▁█"},
		{name: "keeps most recent", data: []float64{0, 0, 100, 100}, width: 2, want: "██"},
		{name: "midpoint", data: []float64{50}, width: 5, want: "▄"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderSparkline(tt.data, tt.width))
		})
	}
}

func TestRenderSparklineColor(t *testing.T) {
	lipgloss.SetColorProfile(termenv.TrueColor)
	t.Cleanup(func() { lipgloss.SetColorProfile(termenv.Ascii) })

	hot := RenderSparkline([]float64{10, 95}, 10)
	cool := RenderSparkline([]float64{95, 10}, 10)

	assert.True(t, strings.Contains(hot, "\x1b["), "expected ANSI color codes")
	assert.NotEqual(t, hot, cool)
}

func TestMetricColor(t *testing.T) {
	assert.Equal(t, ColorHealthy, MetricColor(10))
	assert.Equal(t, ColorWarning, MetricColor(70))
	assert.Equal(t, ColorCritical, MetricColor(90))
	assert.Equal(t, ColorCritical, MetricColor(100))
}
