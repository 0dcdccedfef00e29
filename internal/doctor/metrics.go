package doctor

import (
	"fmt"

	"github.com/rileyhilliard/serialdisplay/internal/metrics"
)

// MetricsCheck takes one CPU and one memory reading.
type MetricsCheck struct {
	Reader metrics.Reader
}

func (c *MetricsCheck) Name() string     { return "metrics_read" }
func (c *MetricsCheck) Category() string { return CategoryMetrics }

func (c *MetricsCheck) Run() CheckResult {
	cpu, cpuErr := c.Reader.CPUPercent()
	mem, memErr := c.Reader.MemoryUsedPercent()

	switch {
	case cpuErr != nil && memErr != nil:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Can't read CPU or memory usage: %v", cpuErr),
			Suggestion: "The display will show 0% for both",
		}
	case cpuErr != nil:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Can't read CPU usage: %v", cpuErr),
			Suggestion: "The display will show the last good value, or 0%",
		}
	case memErr != nil:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Can't read memory usage: %v", memErr),
			Suggestion: "The display will show the last good value, or 0%",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("CPU %d%%, memory %d%%", cpu, mem),
	}
}
