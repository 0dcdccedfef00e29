// Package telemetry exposes session activity as Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rileyhilliard/serialdisplay/internal/frame"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
	"github.com/rileyhilliard/serialdisplay/internal/session"
)

const namespace = "serialdisplay"

// Exporter implements session.Recorder on its own registry.
type Exporter struct {
	registry *prometheus.Registry

	FramesWritten *prometheus.CounterVec
	BytesWritten  prometheus.Counter
	WriteFailures *prometheus.CounterVec
	SessionState  prometheus.Gauge
	Transitions   *prometheus.CounterVec
	CPUPercent    prometheus.Gauge
	MemoryPercent prometheus.Gauge
}

var _ session.Recorder = (*Exporter)(nil)

// New creates an Exporter with all collectors registered.
func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		FramesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_written_total",
				Help:      "Frames written to the serial port",
			},
			[]string{"op"},
		),
		BytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_written_total",
				Help:      "Bytes written to the serial port",
			},
		),
		WriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_failures_total",
				Help:      "Failed frame writes, each of which stopped the session",
			},
			[]string{"op"},
		),
		SessionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_state",
				Help:      "Session state: 0 stopped, 1 starting, 2 running",
			},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_transitions_total",
				Help:      "Session state transitions by target state",
			},
			[]string{"state"},
		),
		CPUPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cpu_percent",
				Help:      "Last CPU utilization sent to the display",
			},
		),
		MemoryPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_percent",
				Help:      "Last memory utilization sent to the display",
			},
		),
	}

	e.registry.MustRegister(
		e.FramesWritten,
		e.BytesWritten,
		e.WriteFailures,
		e.SessionState,
		e.Transitions,
		e.CPUPercent,
		e.MemoryPercent,
	)
	return e
}

// Registry returns the registry backing the exporter.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) FrameWritten(op frame.Opcode, n int) {
	e.FramesWritten.WithLabelValues(op.String()).Inc()
	e.BytesWritten.Add(float64(n))
}

func (e *Exporter) WriteFailed(op frame.Opcode) {
	e.WriteFailures.WithLabelValues(op.String()).Inc()
}

func (e *Exporter) SampleTaken(s metrics.Sample) {
	e.CPUPercent.Set(float64(s.CPU))
	e.MemoryPercent.Set(float64(s.Memory))
}

func (e *Exporter) StateChanged(s session.State) {
	e.SessionState.Set(float64(s))
	e.Transitions.WithLabelValues(s.String()).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
