package transport

import (
	"sync"

	"github.com/sockwrap/sockwrap-go/internal/serial"
)

// machine holds the state shared by Conn and Listener: the current state,
// the single handler slot, and the queue that serializes deliveries.
type machine struct {
	events serial.Queue

	mu         sync.Mutex
	state      State
	handler    StateHandler
	cancelling bool
}

// SetStateHandler installs h as the sole receiver of state updates,
// replacing any previous handler. Updates already queued but not yet
// delivered go to h.
func (m *machine) SetStateHandler(h StateHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// State returns a snapshot of the current state.
func (m *machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to s unless the instance is cancelled or being
// cancelled. It reports whether the transition happened.
func (m *machine) transition(s State, err *Error) bool {
	m.mu.Lock()
	if m.state == StateCancelled || m.cancelling {
		m.mu.Unlock()
		return false
	}
	m.state = s
	m.notify(s, err)
	m.mu.Unlock()
	return true
}

// transitionFrom moves to s only if the current state is from.
func (m *machine) transitionFrom(from, s State, err *Error) bool {
	m.mu.Lock()
	if m.state != from || m.cancelling {
		m.mu.Unlock()
		return false
	}
	m.state = s
	m.notify(s, err)
	m.mu.Unlock()
	return true
}

// cancelled moves to the terminal state. Only the first call has effect.
func (m *machine) cancelled() bool {
	m.mu.Lock()
	if m.state == StateCancelled {
		m.mu.Unlock()
		return false
	}
	m.state = StateCancelled
	m.notify(StateCancelled, nil)
	m.mu.Unlock()
	return true
}

// notify queues delivery of s. Callers hold m.mu so updates are queued in
// the order the state changed.
func (m *machine) notify(s State, err *Error) {
	m.events.Submit(func() {
		m.mu.Lock()
		h := m.handler
		m.mu.Unlock()

		if h != nil {
			h(s, err)
		}
	})
}
