// Package metrics reads host CPU and memory utilization as whole percentages.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const bytesPerMiB = 1024 * 1024

// Sample is one reading of both metrics. Values are 0..100.
type Sample struct {
	CPU    uint8
	Memory uint8
	At     time.Time
}

// Reader is what the telemetry session needs from the OS.
type Reader interface {
	CPUPercent() (int, error)
	MemoryUsedPercent() (int, error)
}

// Source is the raw OS query layer behind a Sampler.
type Source interface {
	// CPUPercent returns total utilization across all cores since the previous call.
	CPUPercent(ctx context.Context) (float64, error)
	// Memory returns total and available physical memory in MiB.
	Memory(ctx context.Context) (totalMiB, availableMiB uint64, err error)
}

// Sampler turns Source readings into clamped integer percentages.
type Sampler struct {
	src     Source
	timeout time.Duration
}

// NewSampler creates a Sampler over src. A nil src uses the host OS.
func NewSampler(src Source) *Sampler {
	if src == nil {
		src = HostSource{}
	}
	return &Sampler{src: src, timeout: 2 * time.Second}
}

// CPUPercent returns current CPU utilization, truncated to a whole percent.
func (s *Sampler) CPUPercent() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	pct, err := s.src.CPUPercent(ctx)
	if err != nil {
		return 0, fmt.Errorf("read cpu: %w", err)
	}
	return clampPercent(int(pct)), nil
}

// MemoryUsedPercent returns physical memory in use as a whole percent.
func (s *Sampler) MemoryUsedPercent() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	total, avail, err := s.src.Memory(ctx)
	if err != nil {
		return 0, fmt.Errorf("read memory: %w", err)
	}
	return UsedPercent(total, avail)
}

// UsedPercent computes 100 - floor(available*100/total).
func UsedPercent(totalMiB, availableMiB uint64) (int, error) {
	if totalMiB == 0 {
		return 0, fmt.Errorf("total memory reported as 0")
	}
	if availableMiB > totalMiB {
		availableMiB = totalMiB
	}
	free := availableMiB * 100 / totalMiB
	return clampPercent(100 - int(free)), nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// HostSource reads the local machine through gopsutil.
type HostSource struct{}

// CPUPercent implements Source. With a zero interval gopsutil compares against
// the previous call, so the call never blocks.
func (HostSource) CPUPercent(ctx context.Context) (float64, error) {
	vals, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("no cpu readings")
	}
	return vals[0], nil
}

// Memory implements Source.
func (HostSource) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total / bytesPerMiB, vm.Available / bytesPerMiB, nil
}
