package telemetry

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/serialdisplay/internal/frame"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
	metricstesting "github.com/rileyhilliard/serialdisplay/internal/metrics/testing"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
	serialtesting "github.com/rileyhilliard/serialdisplay/internal/serialport/testing"
	"github.com/rileyhilliard/serialdisplay/internal/session"
	sessiontesting "github.com/rileyhilliard/serialdisplay/internal/session/testing"
)

func TestExporterCounters(t *testing.T) {
	e := New()

	e.FrameWritten(frame.OpSetRate, frame.ControlLen)
	e.FrameWritten(frame.OpTelemetry, frame.TelemetryLen)
	e.FrameWritten(frame.OpTelemetry, frame.TelemetryLen)
	e.WriteFailed(frame.OpTelemetry)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.FramesWritten.WithLabelValues("set-rate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.FramesWritten.WithLabelValues("telemetry")))
	assert.Equal(t, 11.0, testutil.ToFloat64(e.BytesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.WriteFailures.WithLabelValues("telemetry")))
}

func TestExporterGauges(t *testing.T) {
	e := New()

	e.SampleTaken(metrics.Sample{CPU: 42, Memory: 77})
	e.StateChanged(session.Starting)
	e.StateChanged(session.Running)

	assert.Equal(t, 42.0, testutil.ToFloat64(e.CPUPercent))
	assert.Equal(t, 77.0, testutil.ToFloat64(e.MemoryPercent))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.SessionState))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Transitions.WithLabelValues("running")))

	e.StateChanged(session.Stopped)
	assert.Equal(t, 0.0, testutil.ToFloat64(e.SessionState))
}

func TestHandlerServesTextFormat(t *testing.T) {
	e := New()
	e.FrameWritten(frame.OpTelemetry, frame.TelemetryLen)

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `serialdisplay_frames_written_total{op="telemetry"} 1`)
	assert.Contains(t, string(body), "serialdisplay_session_state 0")
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, addr, logger.Noop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = New().Serve(context.Background(), ln.Addr().String(), logger.Noop())
	assert.Error(t, err)
}

func TestExporterRecordsSession(t *testing.T) {
	e := New()
	opener := serialtesting.NewFakeOpener()
	opener.Configure = func(p *serialtesting.FakePort) { p.FailOnWrite = 3 }
	clock := sessiontesting.NewManualClock()

	s := session.New(
		serialport.NewChannel(opener, 0, logger.Noop()),
		metricstesting.NewFakeReader(10, 20),
		session.WithSleep(clock.Sleep),
		session.WithRecorder(e),
	)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Start("COM3"))
	_, ok := clock.Wait(2 * time.Second)
	require.True(t, ok)
	require.True(t, clock.Release(2*time.Second))

	require.Eventually(t, func() bool { return s.State() == session.Stopped },
		2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.FramesWritten.WithLabelValues("set-rate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.FramesWritten.WithLabelValues("telemetry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.WriteFailures.WithLabelValues("telemetry")))
	assert.Equal(t, 10.0, testutil.ToFloat64(e.CPUPercent))
}
