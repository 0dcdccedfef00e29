package doctor

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
)

// PortsCheck verifies at least one serial port is present.
type PortsCheck struct {
	Ports serialport.Enumerator
}

func (c *PortsCheck) Name() string     { return "ports_present" }
func (c *PortsCheck) Category() string { return CategorySerial }

func (c *PortsCheck) Run() CheckResult {
	ports, err := c.Ports.ListPorts()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Couldn't list serial ports: %v", err),
			Suggestion: "Check that the serial driver is installed",
		}
	}
	if len(ports) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "No serial ports detected",
			Suggestion: "Plug in the display and try again",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Ports: " + strings.Join(ports, ", "),
	}
}

// PortOpenCheck opens the port streaming would use and releases it again.
// With no configured port it uses the only port present, as startup does.
type PortOpenCheck struct {
	Port     string
	BaudRate int
	Ports    serialport.Enumerator
	Opener   serialport.Opener
}

func (c *PortOpenCheck) Name() string     { return "port_open" }
func (c *PortOpenCheck) Category() string { return CategorySerial }

func (c *PortOpenCheck) Run() CheckResult {
	port := c.Port
	if port == "" {
		ports, err := c.Ports.ListPorts()
		switch {
		case err != nil || len(ports) == 0:
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusFail,
				Message: "Nothing to open",
			}
		case len(ports) > 1:
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusWarn,
				Message:    fmt.Sprintf("%d ports present and none configured", len(ports)),
				Suggestion: "Set 'port' in .serialdisplay.yaml or pick one in the menu",
			}
		}
		port = ports[0]
	}

	ch := serialport.NewChannel(c.Opener, c.BaudRate, logger.Noop())
	if err := ch.Open(port); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    messageOf(err),
			Suggestion: suggestionOf(err, ""),
		}
	}
	_ = ch.Close()

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s opens at %d baud", port, c.BaudRate),
	}
}
