package connmgr

import "fmt"

// State represents the current lifecycle state of a Manager.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosing    State = "closing"
)

// transitions is the complete transition table of the lifecycle state machine.
var transitions = map[State][]State{
	StateIdle: {StateConnecting},
	StateConnecting: {
		StateConnected, // retry loop succeeded
		StateIdle,      // retry loop exhausted or cancelled
	},
	StateConnected: {
		StateConnecting, // abnormal close
		StateIdle,       // graceful close by the peer
		StateClosing,    // Disconnect
	},
	StateClosing: {
		StateIdle,      // close observed
		StateConnected, // Close returned an error
	},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrInvalidTransition if from -> to is not allowed.
func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
