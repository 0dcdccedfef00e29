package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	streamPortFlag        string
	streamRateFlag        int
	streamMetricsAddrFlag string
	portsJSONFlag         bool
	initPortFlag          string
	initForce             bool
	initNonInteractive    bool
)

// menuCmd opens the status menu
var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Open the status menu",
	Long: `Open the interactive status menu.

The menu shows whether streaming is running, lists the serial ports you can
pick, and offers the configured refresh rates. Selecting a port starts
streaming to it. Exit stops streaming before quitting.

If exactly one port is present and none is configured it is selected, and
streaming starts right away when auto_start is on.

Examples:
  serialdisplay menu
  serialdisplay --log-file /tmp/serialdisplay.log`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return menuCommand()
	},
}

// streamCmd streams without a UI
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream telemetry without the menu",
	Long: `Stream CPU and memory usage to the display until interrupted.

State changes are printed as they happen. If the device disconnects the
command exits with an error; it does not reconnect on its own.

Examples:
  serialdisplay stream
  serialdisplay stream --port /dev/ttyUSB0 --rate 500
  serialdisplay stream --metrics-addr :9101`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return streamCommand(ctx, streamOptions{
			Port:        streamPortFlag,
			Rate:        streamRateFlag,
			MetricsAddr: streamMetricsAddrFlag,
		})
	},
}

// portsCmd lists serial ports
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports available on this machine.

Examples:
  serialdisplay ports
  serialdisplay ports --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return portsCommand(cmd.OutOrStdout(), nil, portsJSONFlag)
	},
}

// decodeCmd decodes a captured byte stream
var decodeCmd = &cobra.Command{
	Use:   "decode <file|->",
	Short: "Decode a captured byte stream into frames",
	Long: `Decode bytes captured from the serial line into frames, one per line.
Use "-" to read from stdin.

Examples:
  serialdisplay decode capture.bin
  cat /dev/ttyUSB0 | serialdisplay decode -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "-" {
			return decodeCommand(cmd.OutOrStdout(), cmd.InOrStdin())
		}
		f, err := os.Open(args[0])
		if err != nil {
			return decodeOpenError(args[0], err)
		}
		defer f.Close()
		return decodeCommand(cmd.OutOrStdout(), f)
	},
}

// initCmd writes a starter config
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .serialdisplay.yaml configuration",
	Long: `Write a starter .serialdisplay.yaml in the current directory.

When run in a terminal you are asked which serial port to use.

Examples:
  serialdisplay init
  serialdisplay init --port COM3
  serialdisplay init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd.OutOrStdout(), InitOptions{
			Port:           initPortFlag,
			Overwrite:      initForce,
			NonInteractive: initNonInteractive,
		})
	},
}

func init() {
	rootCmd.AddCommand(menuCmd)

	streamCmd.Flags().StringVarP(&streamPortFlag, "port", "p", "", "serial port (overrides config)")
	streamCmd.Flags().IntVarP(&streamRateFlag, "rate", "r", 0, "refresh rate in milliseconds (overrides config)")
	streamCmd.Flags().StringVar(&streamMetricsAddrFlag, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(streamCmd)

	portsCmd.Flags().BoolVar(&portsJSONFlag, "json", false, "output as JSON")
	rootCmd.AddCommand(portsCmd)

	rootCmd.AddCommand(decodeCmd)

	initCmd.Flags().StringVarP(&initPortFlag, "port", "p", "", "serial port to configure")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "skip prompts")
	rootCmd.AddCommand(initCmd)
}
