package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rileyhilliard/serialdisplay/internal/config"
	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Port           string // Pre-selected serial port
	Path           string // Defaults to ./.serialdisplay.yaml
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts, use defaults
}

// initCommand writes a starter config. Prompts are only shown on a terminal.
func initCommand(w io.Writer, opts InitOptions) error {
	path := opts.Path
	if path == "" {
		path = filepath.Join(".", config.ConfigFileName)
	}
	interactive := !opts.NonInteractive && term.IsTerminal(int(os.Stdin.Fd()))

	if _, err := os.Stat(path); err == nil && !opts.Overwrite {
		if !interactive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	cfg.Port = opts.Port

	if cfg.Port == "" && interactive {
		port, err := promptPort(serialport.OSEnumerator{})
		if err != nil {
			return err
		}
		cfg.Port = port
	}

	if err := config.Write(path, cfg, true); err != nil {
		return err
	}

	fmt.Fprintf(w, "Created %s\n", path)
	if cfg.Port == "" {
		fmt.Fprintln(w, "  No port set: the only port present is picked at startup")
	}
	return nil
}

// promptPort asks which port to use. An empty answer means auto-select.
func promptPort(enum serialport.Enumerator) (string, error) {
	ports, err := enum.ListPorts()
	if err != nil || len(ports) == 0 {
		return "", nil
	}

	options := []huh.Option[string]{huh.NewOption("Pick at startup", "")}
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Serial port").
				Description("The port the display is connected to").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass --port or use --non-interactive")
	}
	return port, nil
}
