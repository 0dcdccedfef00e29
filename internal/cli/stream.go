package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/serialdisplay/internal/config"
	"github.com/rileyhilliard/serialdisplay/internal/controller"
	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/session"
	"github.com/rileyhilliard/serialdisplay/internal/telemetry"
)

// streamOptions are the stream command's overrides of the config.
type streamOptions struct {
	Port        string
	Rate        int
	MetricsAddr string
}

// streamCommand streams until SIGINT or SIGTERM.
func streamCommand(ctx context.Context, opts streamOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.Port != "" {
		cfg.Port = opts.Port
	}
	if opts.Rate != 0 {
		if err := config.ValidateRefreshRate(opts.Rate); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
				"Pass a positive number of milliseconds to --rate")
		}
		cfg.RefreshRate = opts.Rate
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	sink := logger.RedirectToFile(logger.FileOptions{
		Path:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	})
	defer sink.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runStream(ctx, cfg, controllerDeps{}, os.Stdout)
}

// runStream drives one session for cfg, printing every change to out. It
// returns nil when ctx ends and the failure when the stream stops on its own.
func runStream(ctx context.Context, cfg *config.Config, deps controllerDeps, out io.Writer) error {
	log := logger.NewEnvLogger("[stream]")
	exporter := telemetry.New()
	deps.Extra = append(deps.Extra, session.WithRecorder(exporter))

	ctrl := newController(cfg, deps)
	defer ctrl.Stop()

	// Closed before the deferred Stop so its notification never blocks.
	done := make(chan struct{})
	defer close(done)

	events := make(chan controller.Event, 16)
	unsubscribe := ctrl.OnStateChanged(func(ev controller.Event) {
		select {
		case events <- ev:
		case <-done:
		}
	})
	defer unsubscribe()

	serveErr := make(chan error, 1)
	if cfg.Metrics.Addr != "" {
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			serveErr <- exporter.Serve(serveCtx, cfg.Metrics.Addr, log)
		}()
	}

	if err := ctrl.AutoStart(true); err != nil {
		return err
	}
	if ctrl.CurrentState() == session.Stopped {
		ports, _ := ctrl.ListAvailablePorts()
		return errors.New(errors.ErrPortUnavailable,
			fmt.Sprintf("%d serial ports found and none selected", len(ports)),
			"Pass --port or set 'port' in .serialdisplay.yaml")
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "stopping")
			return nil

		case err := <-serveErr:
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Metrics endpoint failed on "+cfg.Metrics.Addr,
					"Pick a free address with --metrics-addr")
			}

		case ev := <-events:
			fmt.Fprintln(out, formatEvent(ev))
			if ev.Kind == controller.StateChanged && ev.State == session.Stopped && ev.Err != nil {
				return ev.Err
			}
		}
	}
}

// formatEvent renders one change as a single status line.
func formatEvent(ev controller.Event) string {
	switch ev.Kind {
	case controller.RateChanged:
		return fmt.Sprintf("rate %dms", ev.RefreshRate)
	case controller.PortSelected:
		return fmt.Sprintf("selected %s", ev.Port)
	}

	line := ev.State.String()
	if ev.Port != "" {
		line += " on " + ev.Port
	}
	if ev.State == session.Running {
		line += fmt.Sprintf(" at %dms", ev.RefreshRate)
	}
	if ev.Err != nil {
		line += " (" + errors.Code(ev.Err) + ")"
	}
	return line
}
