package transport

// State is the lifecycle state of a Conn or Listener.
type State uint8

const (
	// StateSetup is the initial state before Start.
	StateSetup State = iota

	// StatePreparing indicates connection establishment is in progress.
	StatePreparing

	// StateWaiting indicates a transient failure; the provider will retry.
	StateWaiting

	// StateReady indicates the connection or listener is usable.
	StateReady

	// StateFailed indicates an unrecoverable error.
	StateFailed

	// StateCancelled is terminal; the socket has been released.
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StatePreparing:
		return "preparing"
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// HasError reports whether updates in this state carry an error.
func (s State) HasError() bool {
	return s == StateWaiting || s == StateFailed
}

// StateHandler receives state updates. err is non-nil exactly when
// state.HasError() is true.
type StateHandler func(state State, err *Error)
