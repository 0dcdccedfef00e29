package serialport

import (
	"fmt"
	"sync"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
)

// DefaultBaudRate matches the display firmware.
const DefaultBaudRate = 9600

// Channel owns at most one open port. Writes are serialized; Close is
// idempotent. Every write failure is reported as TransportLost.
type Channel struct {
	mu       sync.Mutex
	opener   Opener
	baudRate int
	log      logger.Logger

	port Port
	name string
}

// NewChannel creates a closed channel. A nil opener uses the OS and a
// non-positive baud rate uses DefaultBaudRate.
func NewChannel(opener Opener, baudRate int, log logger.Logger) *Channel {
	if opener == nil {
		opener = OSOpener{}
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Channel{opener: opener, baudRate: baudRate, log: log}
}

// Open claims the named port. It fails with PortUnavailable if the port
// can't be opened or the channel already holds a port.
func (c *Channel) Open(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil {
		return errors.New(errors.ErrPortUnavailable,
			fmt.Sprintf("Already streaming to %s", c.name),
			"Stop the current session before opening another port")
	}
	if name == "" {
		return errors.New(errors.ErrPortUnavailable,
			"No serial port selected",
			"Pick a port from the menu or pass --port")
	}

	p, err := c.opener.Open(name, c.baudRate)
	if err != nil {
		reason, suggestion := describeOpenError(name, err)
		c.log.Debug("open %s failed: %v", name, err)
		return errors.WrapWithCode(err, errors.ErrPortUnavailable,
			fmt.Sprintf("Couldn't open serial port %s (%s)", name, reason),
			suggestion)
	}

	c.port = p
	c.name = name
	c.log.Info("opened %s at %d baud", name, c.baudRate)
	return nil
}

// Write sends b in full. A short write counts as a failure.
func (c *Channel) Write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return errors.New(errors.ErrTransportLost,
			"Serial port is not open",
			"Select a port to start streaming")
	}

	n, err := c.port.Write(b)
	if err == nil && n < len(b) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(b))
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransportLost,
			fmt.Sprintf("Lost connection to %s", c.name),
			"Reconnect the device and select the port again")
	}
	return nil
}

// Close releases the port. Safe to call any number of times; release errors
// are logged, not returned.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}
	if err := c.port.Close(); err != nil {
		c.log.Warn("closing %s: %v", c.name, err)
	} else {
		c.log.Info("closed %s", c.name)
	}
	c.port = nil
	c.name = ""
	return nil
}

// IsOpen reports whether the channel holds a port.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

// Name returns the open port's name, or "" when closed.
func (c *Channel) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}
