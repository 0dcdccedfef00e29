package cli

import (
	"github.com/rileyhilliard/serialdisplay/internal/config"
	"github.com/rileyhilliard/serialdisplay/internal/controller"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
	"github.com/rileyhilliard/serialdisplay/internal/session"
)

// controllerDeps lets tests swap the host's serial ports and metrics for fakes.
// Nil fields use the real implementations.
type controllerDeps struct {
	Opener serialport.Opener
	Ports  serialport.Enumerator
	Reader metrics.Reader
	Extra  []session.Option
}

// loadConfig finds, loads and validates the config, applying --log-file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newController wires a controller for cfg.
func newController(cfg *config.Config, deps controllerDeps) *controller.Controller {
	channel := serialport.NewChannel(deps.Opener, cfg.BaudRate, logger.NewEnvLogger("[serial]"))

	opts := []session.Option{
		session.WithLogger(logger.NewEnvLogger("[session]")),
		session.WithRefreshRate(cfg.RefreshRate),
	}
	if cfg.Port != "" {
		opts = append(opts, session.WithPort(cfg.Port))
	}
	opts = append(opts, deps.Extra...)

	return controller.New(controller.Options{
		Channel: channel,
		Reader:  deps.Reader,
		Ports:   deps.Ports,
		Logger:  logger.NewEnvLogger("[controller]"),
		Session: opts,
	})
}
