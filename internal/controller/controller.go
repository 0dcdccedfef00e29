// Package controller is the command surface the menu and CLI drive.
//
// It owns one session, relays commands to it one-to-one and fans every state
// change out to any number of subscribers.
package controller

import (
	"fmt"
	"sync"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/logger"
	"github.com/rileyhilliard/serialdisplay/internal/metrics"
	"github.com/rileyhilliard/serialdisplay/internal/serialport"
	"github.com/rileyhilliard/serialdisplay/internal/session"
)

// EventKind says what prompted an Event.
type EventKind int

const (
	// StateChanged follows every session transition.
	StateChanged EventKind = iota
	// RateChanged follows a successful SetRefreshRate.
	RateChanged
	// PortSelected follows SetPort on a stopped session.
	PortSelected
)

func (k EventKind) String() string {
	switch k {
	case StateChanged:
		return "state"
	case RateChanged:
		return "rate"
	case PortSelected:
		return "port"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers. State, Port and RefreshRate are the
// values current when the event was raised.
type Event struct {
	Kind        EventKind
	State       session.State
	Port        string
	RefreshRate int
	// Err is set when a transition was caused by a failure.
	Err error
}

// Options configures a Controller.
type Options struct {
	Channel session.Channel
	Reader  metrics.Reader
	Ports   serialport.Enumerator
	Logger  logger.Logger
	// Session options are applied after the controller's own.
	Session []session.Option
}

// Controller relays commands to a session and broadcasts its changes.
type Controller struct {
	session *session.Session
	ports   serialport.Enumerator
	log     logger.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// New creates a Controller and the session it owns. Nil fields fall back
// to the host's serial ports and metrics.
func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	ports := opts.Ports
	if ports == nil {
		ports = serialport.OSEnumerator{}
	}
	channel := opts.Channel
	if channel == nil {
		channel = serialport.NewChannel(nil, 0, log)
	}
	reader := opts.Reader
	if reader == nil {
		reader = metrics.NewSampler(nil)
	}

	c := &Controller{
		ports: ports,
		log:   log,
		subs:  make(map[int]func(Event)),
	}

	sessOpts := []session.Option{session.WithLogger(log)}
	sessOpts = append(sessOpts, opts.Session...)
	sessOpts = append(sessOpts, session.WithNotify(c.onChange))
	c.session = session.New(channel, reader, sessOpts...)
	return c
}

// OnStateChanged registers fn for every Event and returns a function that
// removes it. fn runs on the goroutine that caused the change and must not
// block or call Start, Stop or SetPort synchronously.
func (c *Controller) OnStateChanged(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// ListAvailablePorts enumerates serial ports. An empty result is reported as
// a NO_PORTS error alongside the empty list.
func (c *Controller) ListAvailablePorts() ([]string, error) {
	ports, err := c.ports.ListPorts()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrNoPorts,
			"Couldn't list serial ports",
			"Check that the serial driver is installed")
	}
	if len(ports) == 0 {
		return []string{}, errors.New(errors.ErrNoPorts,
			"No serial ports detected",
			"Plug in the display and try again")
	}
	return ports, nil
}

// CurrentState returns the session state.
func (c *Controller) CurrentState() session.State {
	return c.session.State()
}

// Port returns the selected port.
func (c *Controller) Port() string {
	return c.session.Port()
}

// RefreshRate returns the refresh rate in milliseconds.
func (c *Controller) RefreshRate() int {
	return c.session.RefreshRate()
}

// LastError returns the failure behind the most recent transition, if any.
func (c *Controller) LastError() error {
	return c.session.LastError()
}

// LastSample returns the most recent metrics sent to the device.
func (c *Controller) LastSample() (metrics.Sample, bool) {
	return c.session.LastSample()
}

// Start begins streaming to port, or to the selected port when port is "".
func (c *Controller) Start(port string) error {
	return c.session.Start(port)
}

// Stop halts streaming.
func (c *Controller) Stop() {
	c.session.Stop()
}

// SetPort selects a port, restarting the stream when it is active.
func (c *Controller) SetPort(port string) error {
	wasStopped := c.session.State() == session.Stopped
	if err := c.session.SetPort(port); err != nil {
		return err
	}
	if wasStopped && c.session.State() == session.Stopped {
		c.broadcast(PortSelected, nil)
	}
	return nil
}

// SetRefreshRate changes the tick interval.
func (c *Controller) SetRefreshRate(ms int) error {
	if err := c.session.SetRefreshRate(ms); err != nil {
		return err
	}
	c.broadcast(RateChanged, nil)
	return nil
}

// AutoStart applies the startup rules: a lone port is selected when none is
// configured, and the session starts when enabled and a port is selected.
// A configured port is tried even when enumeration finds nothing, since
// virtual and USB-gadget devices are often missing from the list.
// Errors are returned for the caller to show in a status line; the session
// never retries on its own.
func (c *Controller) AutoStart(enabled bool) error {
	ports, err := c.ListAvailablePorts()
	if err != nil {
		if c.session.Port() == "" {
			c.log.Info("auto-start skipped: %s", errors.Code(err))
			return err
		}
		c.log.Debug("enumeration failed (%s), trying configured %s", errors.Code(err), c.session.Port())
	}

	if c.session.Port() == "" && len(ports) == 1 {
		c.log.Info("auto-selected %s", ports[0])
		if err := c.SetPort(ports[0]); err != nil {
			return err
		}
	}

	if !enabled {
		return nil
	}
	port := c.session.Port()
	if port == "" {
		c.log.Debug("auto-start skipped: %d ports and none selected", len(ports))
		return nil
	}
	if err := c.session.Start(port); err != nil {
		return fmt.Errorf("auto-start on %s: %w", port, err)
	}
	return nil
}

func (c *Controller) onChange(ch session.Change) {
	c.dispatch(Event{
		Kind:        StateChanged,
		State:       ch.State,
		Port:        ch.Port,
		RefreshRate: c.session.RefreshRate(),
		Err:         ch.Err,
	})
}

func (c *Controller) broadcast(kind EventKind, err error) {
	c.dispatch(Event{
		Kind:        kind,
		State:       c.session.State(),
		Port:        c.session.Port(),
		RefreshRate: c.session.RefreshRate(),
		Err:         err,
	})
}

func (c *Controller) dispatch(ev Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
