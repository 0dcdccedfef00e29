package tray

import (
	"sync"
	"time"

	"github.com/rileyhilliard/serialdisplay/internal/metrics"
)

// DefaultHistorySize is the number of samples kept for the sparklines.
const DefaultHistorySize = 40

// History keeps the most recent samples sent to the device.
type History struct {
	mu   sync.RWMutex
	cpu  *ringBuffer
	mem  *ringBuffer
	last time.Time
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewHistory creates a history holding size samples per metric.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		cpu: newRingBuffer(size),
		mem: newRingBuffer(size),
	}
}

// Push records s unless it is not newer than the last recorded sample.
// It reports whether s was recorded.
func (h *History) Push(s metrics.Sample) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !s.At.After(h.last) {
		return false
	}
	h.last = s.At
	h.cpu.push(float64(s.CPU))
	h.mem.push(float64(s.Memory))
	return true
}

// CPU returns CPU samples, oldest first.
func (h *History) CPU() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cpu.slice()
}

// Memory returns memory samples, oldest first.
func (h *History) Memory() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mem.slice()
}

// Len returns the number of samples held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cpu.count
}

// Clear drops every sample.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cpu = newRingBuffer(h.cpu.size)
	h.mem = newRingBuffer(h.mem.size)
	h.last = time.Time{}
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *ringBuffer) slice() []float64 {
	out := make([]float64, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		out[i] = r.data[(start+i)%r.size]
	}
	return out
}
