package cli

import (
	"io"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/tray"
)

// menuCommand runs the status menu until the user picks Exit.
func menuCommand() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Log lines would tear the alt screen, so they go to a file or nowhere.
	var sink io.Closer
	if cfg.Log.File != "" {
		sink = logger.RedirectToFile(logger.FileOptions{
			Path:      cfg.Log.File,
			MaxSizeMB: cfg.Log.MaxSizeMB,
		})
	} else {
		sink = logger.Discard()
	}
	defer sink.Close()

	ctrl := newController(cfg, controllerDeps{})
	log := logger.NewEnvLogger("[menu]")

	// The menu shows the failure in its status line; nothing to abort here.
	if err := ctrl.AutoStart(cfg.AutoStart); err != nil {
		log.Warn("auto-start: %s", errors.Code(err))
	}

	return tray.Run(ctrl, tray.Options{Rates: cfg.RefreshRates})
}
