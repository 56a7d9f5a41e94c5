package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/sockwrap/sockwrap-go/internal/backoff"
	"github.com/sockwrap/sockwrap-go/internal/serial"
)

// DefaultMaxReceiveLength is used when Receive is given no maximum.
const DefaultMaxReceiveLength = 65536

// Parameters configures a Conn.
type Parameters struct {
	// ConnectTimeout bounds establishment, including time spent waiting
	// between retries. Zero means one attempt and no retries.
	ConnectTimeout time.Duration

	// TLS enables a handshake once TCP is established: client side for
	// outbound connections, server side for accepted ones.
	TLS *tls.Config

	// Backoff paces retries while waiting. Zero fields take defaults.
	Backoff backoff.Config
}

// Conn is a TCP connection, optionally wrapped in TLS, driven through
// callbacks. Create outbound connections with NewConn; inbound ones are
// produced by a Listener.
type Conn struct {
	machine

	host    string
	port    uint16
	params  Parameters
	inbound bool

	sends serial.Queue
	recvs serial.Queue

	// Guarded by machine.mu.
	nc      net.Conn
	raw     net.Conn
	started bool
	forced  bool

	ctx   context.Context
	abort context.CancelFunc

	onSettle   func()
	settleOnce sync.Once
}

// NewConn creates an outbound connection to host:port. Nothing happens on
// the network until Start.
func NewConn(host string, port uint16, params Parameters) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		host:   host,
		port:   port,
		params: params,
		ctx:    ctx,
		abort:  cancel,
	}
}

// newInboundConn wraps an accepted socket. onSettle runs once, when the
// connection first reaches ready, failed or cancelled.
func newInboundConn(raw net.Conn, params Parameters, onSettle func()) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		params:   params,
		inbound:  true,
		raw:      raw,
		ctx:      ctx,
		abort:    cancel,
		onSettle: onSettle,
	}
	if ap, ok := addrPort(raw.RemoteAddr()); ok {
		c.host = ap.Addr().Unmap().String()
		c.port = ap.Port()
	}
	return c
}

// Endpoint returns the remote host:port this connection targets.
func (c *Conn) Endpoint() string {
	return net.JoinHostPort(c.host, strconv.Itoa(int(c.port)))
}

// Inbound reports whether the connection was accepted by a Listener.
func (c *Conn) Inbound() bool {
	return c.inbound
}

// Start begins establishment in the background. Calls after the first,
// or after Cancel, are ignored.
func (c *Conn) Start() {
	c.mu.Lock()
	if c.started || c.state != StateSetup || c.cancelling {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.establish()
}

func (c *Conn) establish() {
	if !c.transition(StatePreparing, nil) {
		return
	}

	ctx := c.ctx
	if c.params.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(c.ctx, c.params.ConnectTimeout)
		defer cancel()
	}

	bo := backoff.NewWithConfig(c.params.Backoff)
	for {
		nc, err := c.connect(ctx)
		if err == nil {
			if !c.setReady(nc) {
				nc.Close()
			}
			return
		}

		// Cancel reports its own state.
		if c.ctx.Err() != nil {
			return
		}

		terr := FromError(err)
		if c.inbound || c.params.ConnectTimeout <= 0 || ctx.Err() != nil || !terr.transient() {
			c.transition(StateFailed, terr)
			return
		}

		if !c.transition(StateWaiting, terr) {
			return
		}

		timer := time.NewTimer(bo.Next())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			if c.ctx.Err() == nil {
				c.transition(StateFailed, terr)
			}
			return
		}

		if !c.transition(StatePreparing, nil) {
			return
		}
	}
}

func (c *Conn) connect(ctx context.Context) (net.Conn, error) {
	var nc net.Conn
	if c.inbound {
		nc = c.raw
	} else {
		var d net.Dialer
		var err error
		nc, err = d.DialContext(ctx, "tcp", c.Endpoint())
		if err != nil {
			return nil, err
		}
	}

	if c.params.TLS == nil {
		return nc, nil
	}

	var tc *tls.Conn
	if c.inbound {
		tc = tls.Server(nc, c.params.TLS)
	} else {
		tc = tls.Client(nc, c.params.TLS)
	}
	if err := tc.HandshakeContext(ctx); err != nil {
		if !c.inbound {
			nc.Close()
		}
		return nil, err
	}
	return tc, nil
}

func (c *Conn) setReady(nc net.Conn) bool {
	c.mu.Lock()
	if c.state == StateCancelled || c.cancelling {
		c.mu.Unlock()
		return false
	}
	c.nc = nc
	c.state = StateReady
	c.notify(StateReady, nil)
	c.mu.Unlock()

	c.settle()
	return true
}

func (c *Conn) settle() {
	if c.onSettle != nil {
		c.settleOnce.Do(c.onSettle)
	}
}

func (c *Conn) transition(s State, err *Error) bool {
	if !c.machine.transition(s, err) {
		return false
	}
	if s == StateFailed {
		c.settle()
	}
	return true
}

func (c *Conn) current() (net.Conn, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nc, c.state
}

// LocalEndpoint returns the local address of the established path.
func (c *Conn) LocalEndpoint() (netip.AddrPort, bool) {
	nc, _ := c.current()
	if nc == nil {
		return netip.AddrPort{}, false
	}
	return addrPort(nc.LocalAddr())
}

// RemoteEndpoint returns the remote address of the established path.
func (c *Conn) RemoteEndpoint() (netip.AddrPort, bool) {
	nc, _ := c.current()
	if nc == nil {
		return netip.AddrPort{}, false
	}
	return addrPort(nc.RemoteAddr())
}

// Receive issues one read of at least minLength and at most maxLength
// bytes. A minLength of 0 or 1 delivers whatever a single read returns.
// isComplete reports that the peer closed its sending side. Receives
// complete in the order they were issued.
func (c *Conn) Receive(minLength, maxLength int, completion func(data []byte, isComplete bool, err *Error)) {
	if maxLength <= 0 {
		maxLength = DefaultMaxReceiveLength
	}
	if minLength > maxLength {
		minLength = maxLength
	}

	c.recvs.Submit(func() {
		nc, state := c.current()
		if nc == nil || state != StateReady {
			completion(nil, false, notConnected(state))
			return
		}

		buf := make([]byte, maxLength)
		var n int
		var err error
		if minLength <= 1 {
			n, err = nc.Read(buf)
		} else {
			n, err = io.ReadAtLeast(nc, buf, minLength)
		}
		data := buf[:n]

		switch {
		case err == nil:
			completion(data, false, nil)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			completion(data, true, nil)
		default:
			terr := c.ioError(err)
			completion(data, false, terr)
		}
	})
}

// Send writes all of data. Sends complete in the order they were issued.
func (c *Conn) Send(data []byte, completion func(err *Error)) {
	c.sends.Submit(func() {
		nc, state := c.current()
		if nc == nil || state != StateReady {
			completion(notConnected(state))
			return
		}

		if _, err := nc.Write(data); err != nil {
			completion(c.ioError(err))
			return
		}
		completion(nil)
	})
}

// ioError converts an I/O failure and fails a ready connection, unless the
// failure was caused by our own cancellation.
func (c *Conn) ioError(err error) *Error {
	if errors.Is(err, net.ErrClosed) {
		c.mu.Lock()
		cancelling := c.cancelling
		c.mu.Unlock()
		if cancelling {
			return notConnected(StateCancelled)
		}
	}

	terr := FromError(err)
	if c.transitionFrom(StateReady, StateFailed, terr) {
		c.settle()
	}
	return terr
}

// Cancel shuts the connection down gracefully: queued sends are flushed,
// the write side is closed, then the socket is released. Completion is
// observed as the cancelled state.
func (c *Conn) Cancel() {
	c.mu.Lock()
	if c.state == StateCancelled || c.cancelling {
		c.mu.Unlock()
		return
	}
	c.cancelling = true
	nc, raw := c.nc, c.raw
	c.mu.Unlock()

	c.abort()

	if nc == nil {
		if raw != nil {
			raw.Close()
		}
		c.finish()
		return
	}

	c.sends.Submit(func() {
		if cw, ok := nc.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		nc.Close()
		c.finish()
	})
}

// ForceCancel tears the connection down immediately, resetting it
// instead of closing gracefully. In-flight sends and receives fail.
func (c *Conn) ForceCancel() {
	c.mu.Lock()
	if c.state == StateCancelled || c.forced {
		c.mu.Unlock()
		return
	}
	c.cancelling = true
	c.forced = true
	nc, raw := c.nc, c.raw
	c.mu.Unlock()

	c.abort()

	if nc != nil {
		lingerZero(nc)
		nc.Close()
	}
	if raw != nil {
		lingerZero(raw)
		raw.Close()
	}
	c.finish()
}

func (c *Conn) finish() {
	c.mu.Lock()
	c.nc = nil
	c.raw = nil
	c.mu.Unlock()

	if c.cancelled() {
		c.settle()
	}
}

// lingerZero makes the following Close send RST instead of FIN.
func lingerZero(nc net.Conn) {
	if tc, ok := nc.(*tls.Conn); ok {
		nc = tc.NetConn()
	}
	if tcp, ok := nc.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
}

func addrPort(a net.Addr) (netip.AddrPort, bool) {
	tcp, ok := a.(*net.TCPAddr)
	if !ok || tcp == nil {
		return netip.AddrPort{}, false
	}
	return tcp.AddrPort(), true
}
