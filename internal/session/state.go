package session

// State is the lifecycle state of a Session.
type State int

const (
	Stopped State = iota
	Starting
	Running
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Change describes a state transition.
type Change struct {
	State State
	Port  string
	// Err is the failure that caused the transition, if any. Its code is
	// PORT_UNAVAILABLE or TRANSPORT_LOST.
	Err error
}
