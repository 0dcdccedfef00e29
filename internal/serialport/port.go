// Package serialport wraps OS serial I/O behind a small channel type with
// explicit failure signaling, plus port enumeration.
package serialport

import (
	stderrors "errors"
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// Port is an open OS serial port.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Opener opens OS serial ports.
type Opener interface {
	Open(name string, baudRate int) (Port, error)
}

// Enumerator lists the serial ports currently present.
type Enumerator interface {
	ListPorts() ([]string, error)
}

// OSOpener opens real ports with go.bug.st/serial using 8N1 framing.
type OSOpener struct{}

// Open implements Opener.
func (OSOpener) Open(name string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// OSEnumerator lists real ports with go.bug.st/serial.
type OSEnumerator struct{}

// ListPorts implements Enumerator. The result is sorted.
func (OSEnumerator) ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}

// describeOpenError maps a go.bug.st/serial failure to a reason and a hint.
func describeOpenError(name string, err error) (reason, suggestion string) {
	var portErr *serial.PortError
	if stderrors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return "not found", "Check the device is plugged in, then pick the port again"
		case serial.PortBusy:
			return "busy", "Close any other program using " + name + " (Arduino IDE serial monitor, another serialdisplay)"
		case serial.PermissionDenied:
			return "permission denied", "Add your user to the group that owns " + name + " (often 'dialout' or 'uucp')"
		case serial.InvalidSpeed:
			return "baud rate not supported", "Check baud_rate in your config"
		}
	}
	return fmt.Sprintf("%v", err), "Check the device is connected and not in use"
}
