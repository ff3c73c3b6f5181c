// Package lifecycle runs a service through a validated state machine:
//
//	Unknown → Starting → Running → Stopping → Stopped
//
// Start and stop hooks register the resources a process owns (listeners,
// connection pools) so they are opened in order and released in reverse.
// Any non-terminal state may move to Failed. Stopped and Failed are
// terminal; a service is not restarted in place.
package lifecycle

// State is the lifecycle state of a Service.
type State string

const (
	// StateUnknown is the state of a Service that has not been started.
	StateUnknown State = "unknown"
	// StateStarting is held while start hooks run.
	StateStarting State = "starting"
	// StateRunning is the only state in which Health reports healthy.
	StateRunning State = "running"
	// StateStopping is held while stop hooks drain work.
	StateStopping State = "stopping"
	// StateStopped follows a clean shutdown.
	StateStopped State = "stopped"
	// StateFailed follows a failed hook.
	StateFailed State = "failed"
)

func (s State) String() string {
	return string(s)
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateUnknown, StateStarting, StateRunning, StateStopping, StateStopped, StateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

var validTransitions = map[State][]State{
	StateUnknown:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateStopping, StateFailed},
	StateRunning:  {StateStopping, StateFailed},
	StateStopping: {StateStopped, StateFailed},
}

// ValidTransition reports whether from may move to to.
func ValidTransition(from, to State) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
