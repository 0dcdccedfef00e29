package session

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sderrors "github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/frame"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
	metricstesting "github.com/rileyhilliard/serialdisplay/internal/metrics/testing"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
	serialtesting "github.com/rileyhilliard/serialdisplay/internal/serialport/testing"
	sessiontesting "github.com/rileyhilliard/serialdisplay/internal/session/testing"
)

const waitTimeout = 2 * time.Second

type harness struct {
	opener  *serialtesting.FakeOpener
	reader  *metricstesting.FakeReader
	clock   *sessiontesting.ManualClock
	log     *logger.BufferLogger
	changes chan Change
	session *Session
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		opener:  serialtesting.NewFakeOpener(),
		reader:  metricstesting.NewFakeReader(42, 77),
		clock:   sessiontesting.NewManualClock(),
		log:     logger.NewBufferLogger(),
		changes: make(chan Change, 64),
	}
	ch := serialport.NewChannel(h.opener, 0, h.log)
	base := []Option{
		WithLogger(h.log),
		WithSleep(h.clock.Sleep),
		WithNotify(func(c Change) { h.changes <- c }),
	}
	h.session = New(ch, h.reader, append(base, opts...)...)
	t.Cleanup(h.session.Stop)
	return h
}

// tick waits for the loop to finish a tick and returns the sleep it requested.
func (h *harness) tick(t *testing.T) time.Duration {
	t.Helper()
	d, ok := h.clock.Wait(waitTimeout)
	require.True(t, ok, "loop never reached its sleep")
	return d
}

func (h *harness) release(t *testing.T) {
	t.Helper()
	require.True(t, h.clock.Release(waitTimeout), "loop was not sleeping")
}

func (h *harness) nextChange(t *testing.T) Change {
	t.Helper()
	select {
	case c := <-h.changes:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for state change")
		return Change{}
	}
}

// pendingChanges returns notifications already delivered without waiting.
func (h *harness) pendingChanges() []Change {
	var out []Change
	for {
		select {
		case c := <-h.changes:
			out = append(out, c)
		default:
			return out
		}
	}
}

// runUntilStopped releases every sleep until the session reports Stopped.
func (h *harness) runUntilStopped(t *testing.T) Change {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case <-h.clock.Sleeps():
			h.release(t)
		case c := <-h.changes:
			if c.State == Stopped {
				return c
			}
		case <-deadline:
			t.Fatal("session never stopped")
			return Change{}
		}
	}
}

func (h *harness) assertNoMoreTicks(t *testing.T) {
	t.Helper()
	select {
	case d := <-h.clock.Sleeps():
		t.Fatalf("loop kept running: slept %v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func states(changes []Change) []State {
	out := make([]State, len(changes))
	for i, c := range changes {
		out[i] = c.State
	}
	return out
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestNewSessionDefaults(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Stopped, h.session.State())
	assert.Equal(t, DefaultRefreshRate, h.session.RefreshRate())
	assert.True(t, h.session.PendingRateChange())
	assert.Empty(t, h.session.Port())
	assert.NoError(t, h.session.LastError())

	_, ok := h.session.LastSample()
	assert.False(t, ok)
}

func TestStartStreamsFrames(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start("COM3"))
	assert.Equal(t, Change{State: Starting, Port: "COM3"}, h.nextChange(t))
	assert.Equal(t, Change{State: Running, Port: "COM3"}, h.nextChange(t))
	assert.Equal(t, Running, h.session.State())
	assert.Equal(t, "COM3", h.session.Port())

	assert.Equal(t, 250*time.Millisecond, h.tick(t))

	port := h.opener.Last()
	require.NotNil(t, port)
	assert.Equal(t, [][]byte{
		{0x64, 0xFA, 0x00, 0x00, 0x00},
		{0x65, 42, 77},
	}, port.Writes())
	assert.False(t, h.session.PendingRateChange())

	h.release(t)
	assert.Equal(t, 250*time.Millisecond, h.tick(t))

	writes := port.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, []byte{0x65, 42, 77}, writes[2])

	sample, ok := h.session.LastSample()
	require.True(t, ok)
	assert.Equal(t, uint8(42), sample.CPU)
	assert.Equal(t, uint8(77), sample.Memory)

	assert.Equal(t, serialport.DefaultBaudRate, h.opener.Calls[0].BaudRate)
}

func TestStartUsesSelectedPort(t *testing.T) {
	h := newHarness(t, WithPort("COM7"))

	require.NoError(t, h.session.Start(""))
	h.tick(t)

	require.Len(t, h.opener.Calls, 1)
	assert.Equal(t, "COM7", h.opener.Calls[0].Name)
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)
	require.NoError(t, h.session.Start("COM3"))
	require.NoError(t, h.session.Start("COM4"))

	assert.Equal(t, 1, h.opener.OpenCount())
	assert.Equal(t, "COM3", h.session.Port())
	assert.Equal(t, []State{Starting, Running}, states(h.pendingChanges()))
}

func TestConcurrentStartOpensOnce(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.session.Start("COM3")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.opener.OpenCount())
	assert.Equal(t, Running, h.session.State())
}

func TestStartOpenFailure(t *testing.T) {
	h := newHarness(t)
	h.opener.OpenErr = stderrors.New("access denied")

	err := h.session.Start("COM9")
	require.Error(t, err)
	assert.True(t, sderrors.IsCode(err, sderrors.ErrPortUnavailable))

	assert.Equal(t, Stopped, h.session.State())
	assert.True(t, sderrors.IsCode(h.session.LastError(), sderrors.ErrPortUnavailable))

	changes := h.pendingChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, Starting, changes[0].State)
	assert.Equal(t, Stopped, changes[1].State)
	assert.Equal(t, "COM9", changes[1].Port)
	assert.True(t, sderrors.IsCode(changes[1].Err, sderrors.ErrPortUnavailable))

	h.assertNoMoreTicks(t)
}

func TestStartAfterOpenFailureRetries(t *testing.T) {
	h := newHarness(t)
	h.opener.Available = []string{"COM3"}

	require.Error(t, h.session.Start("COM9"))
	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)

	assert.Equal(t, Running, h.session.State())
	assert.NoError(t, h.session.LastError())
}

func TestStopReleasesPort(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)
	h.pendingChanges()

	h.session.Stop()

	assert.Equal(t, Stopped, h.session.State())
	port := h.opener.Last()
	assert.Equal(t, 1, port.CloseCalls())
	assert.Equal(t, []Change{{State: Stopped, Port: "COM3"}}, h.pendingChanges())
	assert.NoError(t, h.session.LastError())

	h.assertNoMoreTicks(t)
	assert.Len(t, port.Writes(), 2)
}

func TestStopWhenStoppedIsNoop(t *testing.T) {
	h := newHarness(t)

	h.session.Stop()
	h.session.Stop()

	assert.Empty(t, h.pendingChanges())
	assert.Equal(t, 0, h.opener.OpenCount())

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)
	h.session.Stop()
	h.session.Stop()

	assert.Equal(t, 1, h.opener.Last().CloseCalls())
	assert.Equal(t, []State{Starting, Running, Stopped}, states(h.pendingChanges()))
}

func TestStopWaitsForTickInProgress(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	h.opener.Configure = func(p *serialtesting.FakePort) {
		p.WriteHook = func(call int, _ []byte) {
			if call == 2 {
				close(entered)
				<-unblock
			}
		}
	}

	require.NoError(t, h.session.Start("COM3"))
	select {
	case <-entered:
	case <-time.After(waitTimeout):
		t.Fatal("telemetry write never started")
	}

	stopped := make(chan struct{})
	go func() {
		h.session.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(unblock)
	select {
	case <-stopped:
	case <-time.After(waitTimeout):
		t.Fatal("Stop never returned")
	}

	port := h.opener.Last()
	assert.Len(t, port.Writes(), 2)
	assert.Equal(t, 1, port.CloseCalls())
	assert.Equal(t, []State{Starting, Running, Stopped}, states(h.pendingChanges()))
	h.assertNoMoreTicks(t)
}

func TestWriteFailureStopsSession(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("fails on write %d", n), func(t *testing.T) {
			h := newHarness(t)
			h.opener.Configure = func(p *serialtesting.FakePort) { p.FailOnWrite = n }

			require.NoError(t, h.session.Start("COM3"))
			stopped := h.runUntilStopped(t)

			assert.Equal(t, "COM3", stopped.Port)
			assert.True(t, sderrors.IsCode(stopped.Err, sderrors.ErrTransportLost))
			assert.Equal(t, Stopped, h.session.State())
			assert.True(t, sderrors.IsCode(h.session.LastError(), sderrors.ErrTransportLost))

			h.assertNoMoreTicks(t)
			for _, c := range h.pendingChanges() {
				assert.NotEqual(t, Stopped, c.State, "duplicate stop notification")
			}

			port := h.opener.Last()
			assert.Equal(t, n, port.WriteCalls())
			assert.Len(t, port.Writes(), n-1)
			assert.Equal(t, 1, port.CloseCalls())

			h.session.Stop()
			assert.Equal(t, 1, port.CloseCalls())
			assert.Empty(t, h.pendingChanges())
		})
	}
}

func TestFailedControlWriteKeepsRatePending(t *testing.T) {
	h := newHarness(t)
	h.opener.Configure = func(p *serialtesting.FakePort) { p.FailOnWrite = 1 }

	require.NoError(t, h.session.Start("COM3"))
	h.runUntilStopped(t)

	assert.True(t, h.session.PendingRateChange())
}

func TestShortWriteIsFailure(t *testing.T) {
	h := newHarness(t)
	h.opener.Configure = func(p *serialtesting.FakePort) {
		p.FailOnWrite = 2
		p.ShortWrite = true
	}

	require.NoError(t, h.session.Start("COM3"))
	stopped := h.runUntilStopped(t)

	assert.True(t, sderrors.IsCode(stopped.Err, sderrors.ErrTransportLost))
}

func TestRestartAfterFailure(t *testing.T) {
	h := newHarness(t)
	failFirst := true
	h.opener.Configure = func(p *serialtesting.FakePort) {
		if failFirst {
			p.FailOnWrite = 3
			failFirst = false
		}
	}

	require.NoError(t, h.session.Start("COM3"))
	h.runUntilStopped(t)

	require.NoError(t, h.session.Start(""))
	h.tick(t)

	assert.Equal(t, Running, h.session.State())
	assert.Equal(t, 2, h.opener.OpenCount())
	assert.NoError(t, h.session.LastError())
	assert.Equal(t, []byte{0x64, 0xFA, 0x00, 0x00, 0x00}, h.opener.Last().Writes()[0])
}

func TestSetRefreshRateWhileRunning(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start("COM3"))
	assert.Equal(t, 250*time.Millisecond, h.tick(t))

	require.NoError(t, h.session.SetRefreshRate(500))
	assert.True(t, h.session.PendingRateChange())

	h.release(t)
	assert.Equal(t, 500*time.Millisecond, h.tick(t))

	writes := h.opener.Last().Writes()
	require.Len(t, writes, 4)
	assert.Equal(t, []byte{0x64, 0xF4, 0x01, 0x00, 0x00}, writes[2])
	assert.Equal(t, []byte{0x65, 42, 77}, writes[3])
	assert.False(t, h.session.PendingRateChange())

	h.release(t)
	assert.Equal(t, 500*time.Millisecond, h.tick(t))
	assert.Len(t, h.opener.Last().Writes(), 5)
}

func TestSetRefreshRateCoalesces(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)

	require.NoError(t, h.session.SetRefreshRate(500))
	require.NoError(t, h.session.SetRefreshRate(750))
	h.release(t)
	assert.Equal(t, 750*time.Millisecond, h.tick(t))

	frames, err := h.opener.Last().Frames()
	require.NoError(t, err)

	var rates []int32
	for _, f := range frames {
		if f.Op == frame.OpSetRate {
			rates = append(rates, f.RateMS)
		}
	}
	assert.Equal(t, []int32{250, 750}, rates)
}

func TestSetRefreshRateWhileStopped(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.SetRefreshRate(1000))
	assert.Equal(t, 1000, h.session.RefreshRate())
	assert.Equal(t, 0, h.opener.OpenCount())

	require.NoError(t, h.session.Start("COM3"))
	assert.Equal(t, time.Second, h.tick(t))
	assert.Equal(t, []byte{0x64, 0xE8, 0x03, 0x00, 0x00}, h.opener.Last().Writes()[0])
}

func TestSetRefreshRateRejectsInvalid(t *testing.T) {
	h := newHarness(t)

	for _, ms := range []int{0, -1, -250} {
		err := h.session.SetRefreshRate(ms)
		require.Error(t, err, "rate %d", ms)
		assert.True(t, sderrors.IsCode(err, sderrors.ErrConfig))
	}
	assert.Equal(t, DefaultRefreshRate, h.session.RefreshRate())
}

func TestWithRefreshRate(t *testing.T) {
	h := newHarness(t, WithRefreshRate(2000))
	assert.Equal(t, 2000, h.session.RefreshRate())

	h = newHarness(t, WithRefreshRate(-1))
	assert.Equal(t, DefaultRefreshRate, h.session.RefreshRate())
}

func TestRestartResendsRate(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)
	h.session.Stop()

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)

	ports := h.opener.Ports()
	require.Len(t, ports, 2)
	assert.Equal(t, []byte{0x64, 0xFA, 0x00, 0x00, 0x00}, ports[1].Writes()[0])
}

func TestSetPortWhileStopped(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.SetPort("COM4"))

	assert.Equal(t, "COM4", h.session.Port())
	assert.Equal(t, Stopped, h.session.State())
	assert.Equal(t, 0, h.opener.OpenCount())
	assert.Empty(t, h.pendingChanges())
}

func TestSetPortWhileRunningRestarts(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)

	require.NoError(t, h.session.SetPort("COM4"))
	h.tick(t)

	ports := h.opener.Ports()
	require.Len(t, ports, 2)
	assert.Equal(t, "COM3", ports[0].Name)
	assert.Equal(t, 1, ports[0].CloseCalls())
	assert.Equal(t, "COM4", ports[1].Name)
	assert.False(t, ports[1].Closed())

	assert.Equal(t, Running, h.session.State())
	assert.Equal(t, "COM4", h.session.Port())
	assert.Equal(t, []byte{0x64, 0xFA, 0x00, 0x00, 0x00}, ports[1].Writes()[0])
	assert.Equal(t,
		[]State{Starting, Running, Stopped, Starting, Running},
		states(h.pendingChanges()))
}

func TestSetPortOpenFailure(t *testing.T) {
	h := newHarness(t)
	h.opener.Available = []string{"COM3"}

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)

	err := h.session.SetPort("COM9")
	require.Error(t, err)
	assert.True(t, sderrors.IsCode(err, sderrors.ErrPortUnavailable))
	assert.Equal(t, Stopped, h.session.State())
	assert.Equal(t, "COM9", h.session.Port())
	assert.Equal(t, 0, h.opener.ActiveCount())
}

func TestMetricFailureReusesPreviousValue(t *testing.T) {
	h := newHarness(t)
	readErr := stderrors.New("counter unavailable")
	h.reader.CPUScript = []metricstesting.Reading{
		{Err: readErr},
		{Value: 50},
		{Err: readErr},
	}
	h.reader.MemoryScript = []metricstesting.Reading{
		{Value: 60},
		{Err: readErr},
		{Value: 61},
	}

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)
	h.release(t)
	h.tick(t)
	h.release(t)
	h.tick(t)

	writes := h.opener.Last().Writes()
	require.Len(t, writes, 4)
	assert.Equal(t, []byte{0x65, 0, 60}, writes[1])
	assert.Equal(t, []byte{0x65, 50, 60}, writes[2])
	assert.Equal(t, []byte{0x65, 50, 61}, writes[3])
	assert.True(t, h.log.Contains("debug", "cpu sample failed"))
}

func TestSampleIsClamped(t *testing.T) {
	h := newHarness(t)
	h.reader.Set(150, -3)

	require.NoError(t, h.session.Start("COM3"))
	h.tick(t)

	assert.Equal(t, []byte{0x65, 100, 0}, h.opener.Last().Writes()[1])
}

type countingRecorder struct {
	mu      sync.Mutex
	written map[frame.Opcode]int
	bytes   int
	failed  int
	samples []metrics.Sample
	states  []State
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{written: map[frame.Opcode]int{}}
}

func (r *countingRecorder) FrameWritten(op frame.Opcode, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written[op]++
	r.bytes += n
}

func (r *countingRecorder) WriteFailed(frame.Opcode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *countingRecorder) SampleTaken(s metrics.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *countingRecorder) StateChanged(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func TestRecorderObservesActivity(t *testing.T) {
	rec := newCountingRecorder()
	h := newHarness(t, WithRecorder(rec))
	h.opener.Configure = func(p *serialtesting.FakePort) { p.FailOnWrite = 4 }

	require.NoError(t, h.session.Start("COM3"))
	h.runUntilStopped(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.written[frame.OpSetRate])
	assert.Equal(t, 2, rec.written[frame.OpTelemetry])
	assert.Equal(t, frame.ControlLen+2*frame.TelemetryLen, rec.bytes)
	assert.Equal(t, 1, rec.failed)
	assert.Len(t, rec.samples, 3)
	assert.Equal(t, []State{Starting, Running, Stopped}, rec.states)
}
