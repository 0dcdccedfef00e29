// Package testing provides test doubles for the metrics package.
package testing

import (
	"sync"
)

// Reading is one scripted result for a FakeReader query.
type Reading struct {
	Value int
	Err   error
}

// FakeReader returns scripted readings. When a script runs out the last
// entry repeats; an empty script returns the fixed CPU/Memory values.
type FakeReader struct {
	mu sync.Mutex

	CPU    int
	Memory int

	CPUScript    []Reading
	MemoryScript []Reading

	CPUCalls    int
	MemoryCalls int
}

// NewFakeReader creates a reader that always returns cpu and mem.
func NewFakeReader(cpu, mem int) *FakeReader {
	return &FakeReader{CPU: cpu, Memory: mem}
}

// CPUPercent implements metrics.Reader.
func (f *FakeReader) CPUPercent() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CPUCalls++
	return next(f.CPUScript, f.CPUCalls, f.CPU)
}

// MemoryUsedPercent implements metrics.Reader.
func (f *FakeReader) MemoryUsedPercent() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MemoryCalls++
	return next(f.MemoryScript, f.MemoryCalls, f.Memory)
}

// Set changes the fixed values returned once any script is exhausted.
func (f *FakeReader) Set(cpu, mem int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CPU = cpu
	f.Memory = mem
	f.CPUScript = nil
	f.MemoryScript = nil
}

func next(script []Reading, call, fixed int) (int, error) {
	if len(script) == 0 {
		return fixed, nil
	}
	i := call - 1
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i].Value, script[i].Err
}
