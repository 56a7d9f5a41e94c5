package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sockwrap/sockwrap-go/internal/backoff"
)

// ErrInvalidPort is returned for ports outside 0..65535.
var ErrInvalidPort = errors.New("invalid port")

// DefaultHandshakeTimeout bounds the TLS handshake of accepted connections
// when ListenParameters leaves it unset.
const DefaultHandshakeTimeout = 10 * time.Second

// ListenParameters configures a Listener.
type ListenParameters struct {
	// Host is the local address to bind. Empty binds all interfaces.
	Host string

	// Port to bind. Zero selects an ephemeral port.
	Port int

	// ConnectionLimit caps the number of accepted connections that have
	// not yet settled. Values below 1 mean no limit.
	ConnectionLimit int

	// TLS, when set, runs a server-side handshake on every accepted
	// connection before it becomes ready.
	TLS *tls.Config

	// HandshakeTimeout bounds the TLS handshake of accepted connections.
	// Default: DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Backoff paces bind retries while waiting.
	Backoff backoff.Config
}

// Listener accepts inbound TCP connections and hands each one, not yet
// started, to the new-connection handler.
type Listener struct {
	machine

	params ListenParameters
	limit  *semaphore.Weighted

	// Guarded by machine.mu.
	nl        net.Listener
	started   bool
	onConnect func(*Conn)

	ctx   context.Context
	abort context.CancelFunc
	wg    sync.WaitGroup
}

// NewListener validates params and returns a Listener in the setup state.
func NewListener(params ListenParameters) (*Listener, error) {
	if params.Port < 0 || params.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, params.Port)
	}
	if params.HandshakeTimeout <= 0 {
		params.HandshakeTimeout = DefaultHandshakeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		params: params,
		ctx:    ctx,
		abort:  cancel,
	}
	if params.ConnectionLimit > 0 {
		l.limit = semaphore.NewWeighted(int64(params.ConnectionLimit))
	}
	return l, nil
}

// SetNewConnectionHandler installs the receiver of accepted connections,
// replacing any previous one. Connections accepted while no handler is
// set are reset and dropped.
func (l *Listener) SetNewConnectionHandler(h func(*Conn)) {
	l.mu.Lock()
	l.onConnect = h
	l.mu.Unlock()
}

// Port returns the bound port once the listener is ready.
func (l *Listener) Port() (int, bool) {
	l.mu.Lock()
	nl := l.nl
	l.mu.Unlock()
	if nl == nil {
		return 0, false
	}
	ap, ok := addrPort(nl.Addr())
	if !ok {
		return 0, false
	}
	return int(ap.Port()), true
}

// Start binds and begins accepting in the background.
func (l *Listener) Start() {
	l.mu.Lock()
	if l.started || l.state != StateSetup || l.cancelling {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run()
}

func (l *Listener) run() {
	defer l.wg.Done()

	if !l.transition(StatePreparing, nil) {
		return
	}

	addr := net.JoinHostPort(l.params.Host, strconv.Itoa(l.params.Port))
	bo := backoff.NewWithConfig(l.params.Backoff)

	var lc net.ListenConfig
	for {
		nl, err := lc.Listen(l.ctx, "tcp", addr)
		if err == nil {
			if !l.setReady(nl) {
				nl.Close()
				return
			}
			break
		}
		if l.ctx.Err() != nil {
			return
		}

		terr := FromError(err)
		if !terr.transient() {
			l.transition(StateFailed, terr)
			return
		}
		if !l.transition(StateWaiting, terr) {
			return
		}

		timer := time.NewTimer(bo.Next())
		select {
		case <-timer.C:
		case <-l.ctx.Done():
			timer.Stop()
			return
		}
		if !l.transition(StatePreparing, nil) {
			return
		}
	}

	l.acceptLoop()
}

func (l *Listener) setReady(nl net.Listener) bool {
	l.mu.Lock()
	if l.state == StateCancelled || l.cancelling {
		l.mu.Unlock()
		return false
	}
	l.nl = nl
	l.state = StateReady
	l.notify(StateReady, nil)
	l.mu.Unlock()
	return true
}

func (l *Listener) acceptLoop() {
	l.mu.Lock()
	nl := l.nl
	l.mu.Unlock()
	if nl == nil {
		return
	}

	for {
		if l.limit != nil {
			if err := l.limit.Acquire(l.ctx, 1); err != nil {
				return
			}
		}

		raw, err := nl.Accept()
		if err != nil {
			if l.limit != nil {
				l.limit.Release(1)
			}
			if l.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if l.transitionFrom(StateReady, StateFailed, FromError(err)) {
				nl.Close()
			}
			return
		}

		l.deliver(raw)
	}
}

func (l *Listener) deliver(raw net.Conn) {
	var release func()
	if l.limit != nil {
		release = func() { l.limit.Release(1) }
	}

	params := Parameters{
		ConnectTimeout: l.params.HandshakeTimeout,
		TLS:            l.params.TLS,
	}
	c := newInboundConn(raw, params, release)

	// Deliveries share the state queue so a connection is never handed
	// out after the listener reports cancelled.
	l.events.Submit(func() {
		l.mu.Lock()
		h := l.onConnect
		cancelled := l.state == StateCancelled
		l.mu.Unlock()

		if h == nil || cancelled {
			c.ForceCancel()
			return
		}
		h(c)
	})
}

// Cancel stops accepting and releases the port. Connections already
// delivered are unaffected.
func (l *Listener) Cancel() {
	l.mu.Lock()
	if l.state == StateCancelled || l.cancelling {
		l.mu.Unlock()
		return
	}
	l.cancelling = true
	nl := l.nl
	l.mu.Unlock()

	l.abort()
	if nl != nil {
		nl.Close()
	}

	go func() {
		l.wg.Wait()

		l.mu.Lock()
		l.nl = nil
		l.mu.Unlock()
		l.cancelled()
	}()
}
