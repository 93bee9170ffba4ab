package guild

// ConnState represents the connection state of a guild.
type ConnState int

const (
	// StateDisconnected indicates there is no transport handle.
	StateDisconnected ConnState = iota
	// StateConnected indicates a live handle; the IDLE, PLAYING and PAUSED
	// sub-states are read from the handle itself.
	StateConnected
	// StateReconnecting indicates the reconnection driver is running.
	StateReconnecting
)

// String returns the string representation of the state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// StateMachine manages connection state transitions.
type StateMachine struct {
	current     ConnState
	transitions map[ConnState][]ConnState
}

// NewStateMachine creates a state machine starting disconnected.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateDisconnected,
		transitions: map[ConnState][]ConnState{
			StateDisconnected: {StateConnected},
			StateConnected:    {StateReconnecting, StateDisconnected, StateConnected},
			StateReconnecting: {StateConnected, StateDisconnected, StateReconnecting},
		},
	}
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to ConnState) bool {
	valid := false
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	sm.current = to
	return true
}

// Reset sets the state unconditionally.
func (sm *StateMachine) Reset(to ConnState) {
	sm.current = to
}

// Current returns the current state.
func (sm *StateMachine) Current() ConnState {
	return sm.current
}
