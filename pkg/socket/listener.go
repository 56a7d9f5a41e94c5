package socket

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sockwrap/sockwrap-go/pkg/log"
	"github.com/sockwrap/sockwrap-go/pkg/transport"
)

// ErrInvalidPort is returned by NewListener for ports above 65535.
var ErrInvalidPort = transport.ErrInvalidPort

// ListenerStateHandler is called when the listener becomes ready (err is
// nil) or reports waiting or failed (err is set).
type ListenerStateHandler func(l *Listener, err *ClassifiedError)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Host is the local address to bind. Empty binds all interfaces.
	Host string

	// Port to bind. Negative or zero selects an ephemeral port.
	Port int

	// Backlog caps connections accepted but not yet ready, failed or
	// cancelled. Values below 1 mean no limit.
	Backlog int

	// TLS, when set, makes every accepted connection negotiate TLS as the
	// server before it is delivered.
	TLS *tls.Config

	// HandshakeTimeout bounds the TLS handshake of accepted connections.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// Logger receives capture events for the listener and every accepted
	// connection. Nil disables capture.
	Logger log.Logger
}

// DefaultListenerConfig returns a configuration binding an ephemeral port
// on all interfaces with no backlog limit.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{Port: -1}
}

// Listener accepts inbound connections and delivers only those that
// reach the ready state.
type Listener struct {
	id     string
	ln     *transport.Listener
	logger log.Logger

	mu             sync.Mutex
	accepted       func(*Connection)
	closeCallbacks []func()
	startHandler   ListenerStateHandler
	prev           transport.State
	cancelled      bool
}

// NewListener validates cfg and returns a listener in the setup state.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	port := cfg.Port
	if port < 0 {
		port = 0
	}

	ln, err := transport.NewListener(transport.ListenParameters{
		Host:             cfg.Host,
		Port:             port,
		ConnectionLimit:  cfg.Backlog,
		TLS:              cfg.TLS,
		HandshakeTimeout: cfg.HandshakeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create listener: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	l := &Listener{
		id:     uuid.NewString(),
		ln:     ln,
		logger: logger,
	}
	ln.SetStateHandler(l.dispatch)
	ln.SetNewConnectionHandler(l.handleAccepted)
	return l, nil
}

// ID returns the identifier used in capture events.
func (l *Listener) ID() string {
	return l.id
}

// AssignAcceptedCallbackListener installs the receiver of ready inbound
// connections, replacing any previous one. Connections that fail before
// becoming ready are cancelled and never delivered.
func (l *Listener) AssignAcceptedCallbackListener(h func(*Connection)) {
	l.mu.Lock()
	l.accepted = h
	l.mu.Unlock()
}

// AssignCloseCallback appends cb to the callbacks run, in order, when the
// listener is cancelled. If it already is, cb runs immediately.
func (l *Listener) AssignCloseCallback(cb func()) {
	l.mu.Lock()
	if l.cancelled {
		l.mu.Unlock()
		cb()
		return
	}
	l.closeCallbacks = append(l.closeCallbacks, cb)
	l.mu.Unlock()
}

// Start binds the port and begins accepting. h is called on ready,
// waiting and failed.
func (l *Listener) Start(h ListenerStateHandler) {
	l.mu.Lock()
	l.startHandler = h
	l.mu.Unlock()

	l.logLifecycle(log.ActionStart, "")
	l.ln.Start()
}

// IsOpen reports whether the listener is ready.
func (l *Listener) IsOpen() bool {
	return l.ln.State() == transport.StateReady
}

// Port returns the bound port while ready, otherwise NoPort.
func (l *Listener) Port() int {
	if !l.IsOpen() {
		return NoPort
	}
	port, ok := l.ln.Port()
	if !ok {
		return NoPort
	}
	return port
}

// StopListeningForInboundConnections cancels the listener and calls cb once
// it is cancelled. If the listener is already cancelled, cb runs before
// this returns.
func (l *Listener) StopListeningForInboundConnections(cb func()) {
	l.mu.Lock()
	if l.cancelled {
		l.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}
	if cb != nil {
		l.closeCallbacks = append(l.closeCallbacks, cb)
	}
	l.mu.Unlock()

	l.logLifecycle(log.ActionStopListening, "")
	l.ln.Cancel()
}

func (l *Listener) dispatch(state transport.State, terr *transport.Error) {
	cerr := Classify(terr)

	l.mu.Lock()
	prev := l.prev
	l.prev = state
	h := l.startHandler
	var callbacks []func()
	if state == transport.StateCancelled {
		l.cancelled = true
		l.accepted = nil
		callbacks = l.closeCallbacks
		l.closeCallbacks = nil
	}
	l.mu.Unlock()

	l.logState(prev, state, cerr)

	switch state {
	case transport.StateReady, transport.StateWaiting, transport.StateFailed:
		if h != nil {
			h(l, cerr)
		}
	case transport.StateCancelled:
		for _, cb := range callbacks {
			cb()
		}
	}
}

func (l *Listener) handleAccepted(tc *transport.Conn) {
	l.mu.Lock()
	accepted := l.accepted
	l.mu.Unlock()

	if accepted == nil {
		l.logLifecycle(log.ActionDrop, tc.Endpoint())
		tc.ForceCancel()
		return
	}

	l.logLifecycle(log.ActionAccept, tc.Endpoint())

	c := newServerConnection(tc, l.logger)
	c.subscribe(func(state transport.State, _ *ClassifiedError) {
		switch state {
		case transport.StateReady:
			// Hand over with no handler installed; the receiver subscribes.
			c.subscribe(nil)
			accepted(c)
		case transport.StateWaiting, transport.StateFailed:
			c.Cancel()
		}
	})
	c.Start()
}

func (l *Listener) event(cat log.Category) log.Event {
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.id,
		Entity:       log.EntityListener,
		Category:     cat,
		Role:         log.RoleServer,
	}
	if port, ok := l.ln.Port(); ok {
		ev.LocalAddr = fmt.Sprintf(":%d", port)
	}
	return ev
}

func (l *Listener) logState(prev, state transport.State, err *ClassifiedError) {
	ev := l.event(log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		OldState: prev.String(),
		NewState: state.String(),
	}
	if err != nil {
		ev.StateChange.Reason = err.Description
	}
	l.logger.Log(ev)

	if err != nil {
		ev := l.event(log.CategoryError)
		ev.Error = errorEvent(err, state.String())
		l.logger.Log(ev)
	}
}

func (l *Listener) logLifecycle(action log.Action, detail string) {
	ev := l.event(log.CategoryLifecycle)
	ev.Lifecycle = &log.LifecycleEvent{Action: action, Detail: detail}
	l.logger.Log(ev)
}
