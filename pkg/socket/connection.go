package socket

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sockwrap/sockwrap-go/pkg/log"
	"github.com/sockwrap/sockwrap-go/pkg/transport"
)

// NoPort is returned by port accessors when no port is known.
const NoPort = -1

// Default configuration values.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultCloseTimeout   = 5 * time.Second
)

// Sentinel errors reported to read and write handlers.
var (
	ErrNotReady  = errors.New("connection not ready")
	ErrCancelled = errors.New("connection cancelled")
)

// StateHandler receives connection state updates. state is one of
// "setup", "preparing", "waiting", "ready", "failed" or "cancelled"; err
// is non-nil exactly for waiting and failed.
type StateHandler func(c *Connection, state string, err *ClassifiedError)

// ReadHandler receives the result of one ReadData call. isComplete
// reports that the peer will send no more data.
type ReadHandler func(data []byte, err error, isComplete bool)

// WriteHandler receives the result of one WriteData call: len(buf) on
// success, 0 on error.
type WriteHandler func(n int, err error)

// ClientConfig configures an outbound connection.
type ClientConfig struct {
	Host string
	Port uint16

	// Timeout bounds establishment. The connection waits and retries
	// transient failures until it elapses. Zero allows a single attempt.
	Timeout time.Duration

	// TLS negotiates TLS after TCP connects. The peer certificate is not
	// verified.
	TLS bool

	// CloseTimeout bounds Close before it escalates to ForceCancel.
	// Default: 5 seconds.
	CloseTimeout time.Duration

	// Logger receives capture events. Nil disables capture.
	Logger log.Logger
}

// DefaultClientConfig returns a client configuration with default timeouts.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      DefaultConnectTimeout,
		CloseTimeout: DefaultCloseTimeout,
	}
}

// Connection is a client or accepted connection with callback-driven
// state and I/O.
type Connection struct {
	id           string
	conn         *transport.Conn
	inbound      bool
	remote       string
	closeTimeout time.Duration
	logger       log.Logger

	mu      sync.Mutex
	handler func(state transport.State, err *ClassifiedError)
	prev    transport.State
	lastErr *ClassifiedError

	closers    []func()
	closeTimer *time.Timer
}

// NewClientConnection creates an outbound connection in the setup state.
// Nothing happens on the network until Start.
func NewClientConnection(cfg ClientConfig) *Connection {
	params := transport.Parameters{ConnectTimeout: cfg.Timeout}
	if cfg.TLS {
		params.TLS = transport.NewInsecureClientTLSConfig(cfg.Host)
	}

	tc := transport.NewConn(cfg.Host, cfg.Port, params)
	return newConnection(tc, false, cfg.CloseTimeout, cfg.Logger)
}

// newServerConnection wraps a connection produced by a transport listener.
func newServerConnection(tc *transport.Conn, logger log.Logger) *Connection {
	return newConnection(tc, true, DefaultCloseTimeout, logger)
}

func newConnection(tc *transport.Conn, inbound bool, closeTimeout time.Duration, logger log.Logger) *Connection {
	if closeTimeout <= 0 {
		closeTimeout = DefaultCloseTimeout
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}

	c := &Connection{
		id:           uuid.NewString(),
		conn:         tc,
		inbound:      inbound,
		remote:       tc.Endpoint(),
		closeTimeout: closeTimeout,
		logger:       logger,
	}
	tc.SetStateHandler(c.dispatch)
	return c
}

// ID returns the identifier used in capture events.
func (c *Connection) ID() string {
	return c.id
}

// Inbound reports whether the connection was accepted by a Listener.
func (c *Connection) Inbound() bool {
	return c.inbound
}

// dispatch is the single receiver of transport state updates.
func (c *Connection) dispatch(state transport.State, terr *transport.Error) {
	cerr := Classify(terr)

	c.mu.Lock()
	prev := c.prev
	c.prev = state
	if cerr != nil {
		c.lastErr = cerr
	}
	h := c.handler
	c.mu.Unlock()

	c.logState(prev, state, cerr)

	if h != nil {
		h(state, cerr)
	}
}

// subscribe replaces the handler slot.
func (c *Connection) subscribe(h func(state transport.State, err *ClassifiedError)) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// SubscribeToStateUpdates installs h as the only state handler, replacing
// any previous one. A nil h stops delivery.
func (c *Connection) SubscribeToStateUpdates(h StateHandler) {
	if h == nil {
		c.subscribe(nil)
		return
	}
	c.subscribe(func(state transport.State, err *ClassifiedError) {
		h(c, state.String(), err)
	})
}

// Start begins establishing the connection.
func (c *Connection) Start() {
	c.logLifecycle(log.ActionStart, "")
	c.conn.Start()
}

// CurrentState returns a snapshot of the state name.
func (c *Connection) CurrentState() string {
	return c.conn.State().String()
}

// State returns a snapshot of the state.
func (c *Connection) State() transport.State {
	return c.conn.State()
}

// LastError returns the most recent error reported with a state update.
func (c *Connection) LastError() *ClassifiedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// IsOpen reports whether the connection is ready.
func (c *Connection) IsOpen() bool {
	return c.conn.State() == transport.StateReady
}

// LocalPort returns the local port, or NoPort.
func (c *Connection) LocalPort() int {
	return portOf(c.conn.LocalEndpoint())
}

// RemotePort returns the remote port, or NoPort.
func (c *Connection) RemotePort() int {
	return portOf(c.conn.RemoteEndpoint())
}

func portOf(ap netip.AddrPort, ok bool) int {
	if !ok {
		return NoPort
	}
	return int(ap.Port())
}

// ReadData reads up to 65536 bytes and calls h once with the result.
func (c *Connection) ReadData(h ReadHandler) {
	c.conn.Receive(0, transport.DefaultMaxReceiveLength, func(data []byte, isComplete bool, terr *transport.Error) {
		if terr != nil {
			err := ioError("read", terr)
			c.logError(err, "read")
			if h != nil {
				h(data, err, isComplete)
			}
			return
		}

		c.logData(log.DirectionIn, data, isComplete)
		if h != nil {
			h(data, nil, isComplete)
		}
	})
}

// WriteData writes all of buf and calls h once with the result.
func (c *Connection) WriteData(buf []byte, h WriteHandler) {
	c.conn.Send(buf, func(terr *transport.Error) {
		if terr != nil {
			err := ioError("write", terr)
			c.logError(err, "write")
			if h != nil {
				h(0, err)
			}
			return
		}

		c.logData(log.DirectionOut, buf, false)
		if h != nil {
			h(len(buf), nil)
		}
	})
}

func ioError(op string, terr *transport.Error) error {
	cerr := Classify(terr)
	switch {
	case errors.Is(terr, transport.ErrCancelled):
		return fmt.Errorf("%s: %w: %w", op, ErrCancelled, cerr)
	case errors.Is(terr, transport.ErrNotConnected):
		return fmt.Errorf("%s: %w: %w", op, ErrNotReady, cerr)
	default:
		return cerr
	}
}

// Cancel closes the connection gracefully. Completion is reported as the
// cancelled state.
func (c *Connection) Cancel() {
	c.logLifecycle(log.ActionCancel, "")
	c.conn.Cancel()
}

// ForceCancel aborts the connection immediately.
func (c *Connection) ForceCancel() {
	c.logLifecycle(log.ActionForceCancel, "")
	c.conn.ForceCancel()
}

// Close cancels the connection and calls completion exactly once when it
// has failed or been cancelled. Close replaces the state handler. If the
// connection does not finish within the close timeout it is force
// cancelled and completion runs regardless. Completions of repeated Close
// calls accumulate and run in call order.
func (c *Connection) Close(completion func()) {
	c.logLifecycle(log.ActionClose, "")

	if c.conn.State() == transport.StateCancelled {
		if completion != nil {
			go completion()
		}
		return
	}

	c.mu.Lock()
	if completion != nil {
		c.closers = append(c.closers, completion)
	}
	if c.closeTimer == nil {
		c.closeTimer = time.AfterFunc(c.closeTimeout, func() {
			c.logLifecycle(log.ActionCloseTimeout, c.closeTimeout.String())
			c.conn.ForceCancel()
			c.finishClose()
		})
	}
	c.mu.Unlock()

	c.subscribe(func(state transport.State, _ *ClassifiedError) {
		if state == transport.StateCancelled || state == transport.StateFailed {
			c.finishClose()
		}
	})

	// The cancelled update may have been delivered before the handler
	// was replaced.
	if c.conn.State() == transport.StateCancelled {
		go c.finishClose()
		return
	}

	c.conn.Cancel()
}

// finishClose force cancels the transport and runs every pending close
// completion. Each completion is taken from the list before it runs, so
// none runs twice.
func (c *Connection) finishClose() {
	c.mu.Lock()
	pending := c.closers
	c.closers = nil
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
	c.mu.Unlock()

	c.conn.ForceCancel()
	for _, fn := range pending {
		fn()
	}
}

func (c *Connection) event(cat log.Category) log.Event {
	ev := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Entity:       log.EntityConnection,
		Category:     cat,
		Role:         log.RoleClient,
		RemoteAddr:   c.remote,
	}
	if c.inbound {
		ev.Role = log.RoleServer
	}
	if ap, ok := c.conn.LocalEndpoint(); ok {
		ev.LocalAddr = ap.String()
	}
	return ev
}

func (c *Connection) logState(prev, state transport.State, err *ClassifiedError) {
	ev := c.event(log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		OldState: prev.String(),
		NewState: state.String(),
	}
	if err != nil {
		ev.StateChange.Reason = err.Description
	}
	c.logger.Log(ev)

	if err != nil {
		c.logError(err, state.String())
	}
}

func (c *Connection) logData(dir log.Direction, data []byte, eos bool) {
	ev := c.event(log.CategoryData)
	ev.Direction = dir
	ev.Data = log.NewDataEvent(data, eos)
	c.logger.Log(ev)
}

func (c *Connection) logLifecycle(action log.Action, detail string) {
	ev := c.event(log.CategoryLifecycle)
	ev.Lifecycle = &log.LifecycleEvent{Action: action, Detail: detail}
	c.logger.Log(ev)
}

func (c *Connection) logError(err error, context string) {
	ev := c.event(log.CategoryError)
	ev.Error = errorEvent(err, context)
	c.logger.Log(ev)
}

func errorEvent(err error, context string) *log.ErrorEventData {
	data := &log.ErrorEventData{Message: err.Error(), Context: context}

	var cerr *ClassifiedError
	if errors.As(err, &cerr) {
		data.Kind = cerr.Kind.String()
		if cerr.Cause != nil && cerr.Cause.Code != 0 {
			code := cerr.Cause.Code
			data.Code = &code
		}
	}
	return data
}
