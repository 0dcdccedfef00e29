package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/frame"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
)

// DefaultRefreshRate is the tick interval in milliseconds used until
// SetRefreshRate is called.
const DefaultRefreshRate = 250

// Channel is the byte transport a Session writes frames to.
// *serialport.Channel satisfies it.
type Channel interface {
	Open(name string) error
	Write(b []byte) error
	Close() error
}

// SleepFunc waits for d or until ctx is done. It reports whether the full
// duration elapsed.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Recorder observes session activity. Implementations must be safe for
// concurrent use and must not block.
type Recorder interface {
	FrameWritten(op frame.Opcode, n int)
	WriteFailed(op frame.Opcode)
	SampleTaken(s metrics.Sample)
	StateChanged(s State)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithNotify registers fn to receive every state transition. fn runs on the
// goroutine that caused the transition and must not call Start, Stop or
// SetPort synchronously.
func WithNotify(fn func(Change)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithSleep replaces the inter-tick wait.
func WithSleep(fn SleepFunc) Option {
	return func(s *Session) { s.sleep = fn }
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithPort preselects a port without opening it.
func WithPort(name string) Option {
	return func(s *Session) { s.port = name }
}

// WithRefreshRate sets the initial refresh rate in milliseconds. Values
// outside 1..MaxInt32 are ignored.
func WithRefreshRate(ms int) Option {
	return func(s *Session) {
		if validRate(ms) {
			s.rate = int32(ms)
		}
	}
}

// Session streams telemetry frames to one serial port.
type Session struct {
	channel  Channel
	reader   metrics.Reader
	log      logger.Logger
	notify   func(Change)
	sleep    SleepFunc
	recorder Recorder

	// ops serializes Start, Stop and SetPort.
	ops sync.Mutex

	mu      sync.Mutex
	state   State
	port    string
	lastErr error
	run     *run
	// prev is closed once the most recent loop goroutine has exited.
	prev chan struct{}

	rateMu  sync.Mutex
	rate    int32
	pending bool

	last atomic.Pointer[metrics.Sample]
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
	port   string
}

// New creates a stopped Session that writes to channel and samples reader.
func New(channel Channel, reader metrics.Reader, opts ...Option) *Session {
	s := &Session{
		channel:  channel,
		reader:   reader,
		log:      logger.Noop(),
		sleep:    sleepContext,
		recorder: nopRecorder{},
		rate:     DefaultRefreshRate,
		pending:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens port and begins streaming. An empty port reuses the last
// selected one. Calling Start while Starting or Running does nothing and
// returns nil. An open failure leaves the session Stopped and is returned.
func (s *Session) Start(port string) error {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.start(port)
}

// Stop halts streaming and releases the port. It blocks until any in-flight
// tick has finished. Stopping a stopped session is a no-op.
func (s *Session) Stop() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.stop()
}

// SetPort selects a new port. When the session is active it is stopped and
// restarted on the new port; otherwise the name is only recorded.
func (s *Session) SetPort(name string) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	active := s.state != Stopped
	if !active {
		s.port = name
	}
	s.mu.Unlock()

	if !active {
		s.log.Debug("port set to %s", name)
		return nil
	}
	s.stop()
	return s.start(name)
}

// SetRefreshRate changes the tick interval. The device is told about the new
// rate with a control frame at the start of the next tick. Rates outside
// 1..MaxInt32 milliseconds are rejected.
func (s *Session) SetRefreshRate(ms int) error {
	if !validRate(ms) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid refresh rate %dms", ms),
			"Use a positive number of milliseconds")
	}
	s.rateMu.Lock()
	s.rate = int32(ms)
	s.pending = true
	s.rateMu.Unlock()
	s.log.Debug("refresh rate set to %dms", ms)
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port returns the selected port name.
func (s *Session) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// RefreshRate returns the current refresh rate in milliseconds.
func (s *Session) RefreshRate() int {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	return int(s.rate)
}

// PendingRateChange reports whether the device has yet to receive the
// current refresh rate.
func (s *Session) PendingRateChange() bool {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	return s.pending
}

// LastError returns the error behind the most recent failure transition.
// It is cleared by Start and by an explicit Stop.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastSample returns the most recent sample of the current run.
func (s *Session) LastSample() (metrics.Sample, bool) {
	p := s.last.Load()
	if p == nil {
		return metrics.Sample{}, false
	}
	return *p, true
}

func (s *Session) start(port string) error {
	s.mu.Lock()
	if s.state != Stopped {
		s.log.Debug("start ignored: session is %s on %s", s.state, s.port)
		s.mu.Unlock()
		return nil
	}
	prev := s.prev
	s.mu.Unlock()

	// A loop that just failed may still be releasing the port.
	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	if port == "" {
		port = s.port
	}
	s.port = port
	s.state = Starting
	s.lastErr = nil
	s.mu.Unlock()
	s.emit(Change{State: Starting, Port: port})

	if err := s.channel.Open(port); err != nil {
		s.mu.Lock()
		s.state = Stopped
		s.lastErr = err
		s.mu.Unlock()
		s.log.Warn("could not open %s: %v", port, errors.Code(err))
		s.emit(Change{State: Stopped, Port: port, Err: err})
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, done: make(chan struct{}), port: port}

	s.rateMu.Lock()
	s.pending = true
	s.rateMu.Unlock()
	s.last.Store(nil)

	s.mu.Lock()
	s.state = Running
	s.run = r
	s.prev = r.done
	s.mu.Unlock()

	s.log.Info("streaming to %s", port)
	s.emit(Change{State: Running, Port: port})
	go s.loop(ctx, r)
	return nil
}

func (s *Session) stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	r := s.run
	s.run = nil
	s.state = Stopped
	s.lastErr = nil
	port := s.port
	s.mu.Unlock()

	if r != nil {
		r.cancel()
		<-r.done
	}
	_ = s.channel.Close()
	s.log.Info("stopped streaming to %s", port)
	s.emit(Change{State: Stopped, Port: port})
}

func (s *Session) loop(ctx context.Context, r *run) {
	defer close(r.done)

	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.tick(); err != nil {
			s.fail(r, err)
			return
		}
		if !s.sleep(ctx, time.Duration(s.RefreshRate())*time.Millisecond) {
			return
		}
	}
}

func (s *Session) tick() error {
	if rate, ok := s.takePendingRate(); ok {
		if err := s.write(frame.OpSetRate, frame.EncodeControl(rate)); err != nil {
			s.markPending()
			return err
		}
		s.log.Debug("sent refresh rate %dms", rate)
	}

	sample := s.sample()
	return s.write(frame.OpTelemetry, frame.EncodeTelemetry(sample.CPU, sample.Memory))
}

// sample reads both metrics. A failed read reuses that metric's value from
// the previous tick of this run, or 0 on the first tick.
func (s *Session) sample() metrics.Sample {
	var prev metrics.Sample
	if p := s.last.Load(); p != nil {
		prev = *p
	}

	next := metrics.Sample{CPU: prev.CPU, Memory: prev.Memory, At: time.Now()}
	if v, err := s.reader.CPUPercent(); err != nil {
		s.log.Debug("cpu sample failed, reusing %d: %v", prev.CPU, err)
	} else {
		next.CPU = toPercent(v)
	}
	if v, err := s.reader.MemoryUsedPercent(); err != nil {
		s.log.Debug("memory sample failed, reusing %d: %v", prev.Memory, err)
	} else {
		next.Memory = toPercent(v)
	}

	s.last.Store(&next)
	s.recorder.SampleTaken(next)
	return next
}

func (s *Session) write(op frame.Opcode, b []byte) error {
	if err := s.channel.Write(b); err != nil {
		s.recorder.WriteFailed(op)
		return err
	}
	s.recorder.FrameWritten(op, len(b))
	return nil
}

// fail tears down after a write error unless an explicit Stop already owns
// the teardown of r.
func (s *Session) fail(r *run, err error) {
	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return
	}
	s.run = nil
	s.state = Stopped
	s.lastErr = err
	port := s.port
	s.mu.Unlock()

	r.cancel()
	_ = s.channel.Close()
	s.log.Warn("stream to %s failed: %s", port, errors.Code(err))
	s.emit(Change{State: Stopped, Port: port, Err: err})
}

func (s *Session) takePendingRate() (int32, bool) {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	if !s.pending {
		return 0, false
	}
	s.pending = false
	return s.rate, true
}

func (s *Session) markPending() {
	s.rateMu.Lock()
	s.pending = true
	s.rateMu.Unlock()
}

func (s *Session) emit(c Change) {
	s.recorder.StateChanged(c.State)
	if s.notify != nil {
		s.notify(c)
	}
}

func validRate(ms int) bool {
	return ms > 0 && ms <= math.MaxInt32
}

func toPercent(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return uint8(v)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopRecorder struct{}

func (nopRecorder) FrameWritten(frame.Opcode, int) {}
func (nopRecorder) WriteFailed(frame.Opcode)       {}
func (nopRecorder) SampleTaken(metrics.Sample)     {}
func (nopRecorder) StateChanged(State)             {}
