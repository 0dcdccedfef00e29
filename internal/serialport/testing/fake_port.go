// Package testing provides test doubles for the serialport package.
package testing

import (
	"errors"
	"sync"

	"github.com/rileyhilliard/serialdisplay/internal/frame"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
)

// ErrUnplugged is the default error returned by a failing fake write.
var ErrUnplugged = errors.New("device unplugged")

// FakePort records everything written to it and can be told to fail.
type FakePort struct {
	mu sync.Mutex

	Name string

	// FailOnWrite makes the Nth write (1-based) fail, and every write after it.
	// Zero never fails.
	FailOnWrite int
	FailErr     error
	// ShortWrite makes failing writes report a short count with no error.
	ShortWrite bool

	// WriteHook runs before each write completes, outside the port lock.
	// Tests use it to block a write mid-tick.
	WriteHook func(call int, b []byte)

	writes     [][]byte
	writeCalls int
	closeCalls int
}

// Write implements serialport.Port.
func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.writeCalls++
	call := p.writeCalls
	hook := p.WriteHook
	p.mu.Unlock()

	if hook != nil {
		hook(call, b)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailOnWrite > 0 && call >= p.FailOnWrite {
		if p.ShortWrite {
			return len(b) / 2, nil
		}
		if p.FailErr != nil {
			return 0, p.FailErr
		}
		return 0, ErrUnplugged
	}

	cp := make([]byte, len(b))
	copy(cp, b)
	p.writes = append(p.writes, cp)
	return len(b), nil
}

// Close implements serialport.Port.
func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	return nil
}

// Writes returns the successful writes in order.
func (p *FakePort) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// WriteCalls returns the number of write attempts, failed ones included.
func (p *FakePort) WriteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeCalls
}

// Frames decodes the successful writes as a single byte stream.
func (p *FakePort) Frames() ([]frame.Frame, error) {
	var stream []byte
	for _, w := range p.Writes() {
		stream = append(stream, w...)
	}
	return frame.Decode(stream)
}

// CloseCalls returns how many times Close was called.
func (p *FakePort) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// Closed reports whether Close was called at least once.
func (p *FakePort) Closed() bool {
	return p.CloseCalls() > 0
}

// OpenCall records a call to FakeOpener.Open.
type OpenCall struct {
	Name     string
	BaudRate int
	Success  bool
}

// FakeOpener hands out FakePorts.
type FakeOpener struct {
	mu sync.Mutex

	// Available limits which names can be opened. Nil allows any name.
	Available []string
	// OpenErr makes every Open fail.
	OpenErr error
	// Configure runs on each new port before it is returned.
	Configure func(p *FakePort)

	Calls []OpenCall
	ports []*FakePort
}

// NewFakeOpener creates an opener that succeeds for any name.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{}
}

// Open implements serialport.Opener.
func (o *FakeOpener) Open(name string, baudRate int) (serialport.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	call := OpenCall{Name: name, BaudRate: baudRate}

	if o.OpenErr != nil {
		o.Calls = append(o.Calls, call)
		return nil, o.OpenErr
	}
	if o.Available != nil && !contains(o.Available, name) {
		o.Calls = append(o.Calls, call)
		return nil, errors.New("no such port: " + name)
	}

	p := &FakePort{Name: name}
	if o.Configure != nil {
		o.Configure(p)
	}
	o.ports = append(o.ports, p)
	call.Success = true
	o.Calls = append(o.Calls, call)
	return p, nil
}

// Ports returns every port handed out, in order.
func (o *FakeOpener) Ports() []*FakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*FakePort, len(o.ports))
	copy(out, o.ports)
	return out
}

// Last returns the most recently opened port, or nil.
func (o *FakeOpener) Last() *FakePort {
	ports := o.Ports()
	if len(ports) == 0 {
		return nil
	}
	return ports[len(ports)-1]
}

// OpenCount returns the number of successful opens.
func (o *FakeOpener) OpenCount() int {
	return len(o.Ports())
}

// ActiveCount returns how many handed-out ports were never closed.
func (o *FakeOpener) ActiveCount() int {
	n := 0
	for _, p := range o.Ports() {
		if !p.Closed() {
			n++
		}
	}
	return n
}

// FakeEnumerator returns a fixed port list.
type FakeEnumerator struct {
	mu    sync.Mutex
	ports []string
	Err   error
	Calls int
}

// NewFakeEnumerator creates an enumerator returning ports.
func NewFakeEnumerator(ports ...string) *FakeEnumerator {
	return &FakeEnumerator{ports: ports}
}

// ListPorts implements serialport.Enumerator.
func (e *FakeEnumerator) ListPorts() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([]string, len(e.ports))
	copy(out, e.ports)
	return out, nil
}

// SetPorts replaces the port list, simulating plug and unplug.
func (e *FakeEnumerator) SetPorts(ports ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ports = ports
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
