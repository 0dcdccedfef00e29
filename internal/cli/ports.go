package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/serialdisplay/internal/controller"
	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
)

// portsOutput is the --json payload of the ports command.
type portsOutput struct {
	Ports []string `json:"ports"`
}

// portsCommand prints the serial ports enum reports. A nil enum lists the
// host's ports.
func portsCommand(w io.Writer, enum serialport.Enumerator, asJSON bool) error {
	ctrl := controller.New(controller.Options{Ports: enum})

	ports, err := ctrl.ListAvailablePorts()
	noPorts := errors.IsCode(err, errors.ErrNoPorts) && ports != nil
	if err != nil && !noPorts {
		if asJSON {
			if jsonErr := WriteJSONFromError(w, err); jsonErr != nil {
				return jsonErr
			}
			return errors.NewExitError(1)
		}
		return err
	}

	if asJSON {
		return WriteJSONSuccess(w, portsOutput{Ports: ports})
	}

	if noPorts {
		info := ErrorToJSON(err)
		fmt.Fprintln(w, info.Message)
		if info.Suggestion != "" {
			fmt.Fprintf(w, "  %s\n", info.Suggestion)
		}
		return nil
	}

	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}
