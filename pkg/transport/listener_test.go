package transport

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startListener(t *testing.T, params ListenParameters) (*Listener, *stateRecorder) {
	t.Helper()

	l, err := NewListener(params)
	require.NoError(t, err)

	rec := newStateRecorder()
	l.SetStateHandler(rec.handle)
	l.Start()
	rec.waitFor(t, StateReady)
	return l, rec
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewListenerRejectsInvalidPort(t *testing.T) {
	for _, port := range []int{-1, 65536, 100000} {
		_, err := NewListener(ListenParameters{Port: port})
		assert.True(t, errors.Is(err, ErrInvalidPort), "port %d", port)
	}
}

func TestNewListenerDefaultsHandshakeTimeout(t *testing.T) {
	l, err := NewListener(ListenParameters{})
	require.NoError(t, err)
	assert.Equal(t, DefaultHandshakeTimeout, l.params.HandshakeTimeout)

	l, err = NewListener(ListenParameters{HandshakeTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, l.params.HandshakeTimeout)
}

func TestListenerEphemeralPort(t *testing.T) {
	l, rec := startListener(t, ListenParameters{Host: "127.0.0.1"})

	port, ok := l.Port()
	require.True(t, ok)
	assert.Greater(t, port, 0)

	l.Cancel()
	rec.waitFor(t, StateCancelled)

	_, ok = l.Port()
	assert.False(t, ok)
}

func TestListenerPortBeforeStart(t *testing.T) {
	l, err := NewListener(ListenParameters{})
	require.NoError(t, err)

	_, ok := l.Port()
	assert.False(t, ok)
	assert.Equal(t, StateSetup, l.State())
}

func TestListenerDeliversConnections(t *testing.T) {
	accepted := make(chan *Conn, 4)
	l, err := NewListener(ListenParameters{Host: "127.0.0.1"})
	require.NoError(t, err)
	l.SetNewConnectionHandler(func(c *Conn) { accepted <- c })

	rec := newStateRecorder()
	l.SetStateHandler(rec.handle)
	l.Start()
	rec.waitFor(t, StateReady)
	defer l.Cancel()

	port, _ := l.Port()
	dial(t, port)

	select {
	case c := <-accepted:
		assert.True(t, c.Inbound())
		assert.Equal(t, StateSetup, c.State())
		c.ForceCancel()
	case <-time.After(5 * time.Second):
		t.Fatal("connection not delivered")
	}
}

func TestListenerDropsWithoutHandler(t *testing.T) {
	l, _ := startListener(t, ListenParameters{Host: "127.0.0.1"})
	defer l.Cancel()

	port, _ := l.Port()
	c := dial(t, port)

	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1)
	_, err := c.Read(buf)
	assert.Error(t, err, "dropped connection should be closed by the listener")
}

func TestListenerConnectionLimit(t *testing.T) {
	accepted := make(chan *Conn, 4)
	l, err := NewListener(ListenParameters{Host: "127.0.0.1", ConnectionLimit: 1})
	require.NoError(t, err)
	l.SetNewConnectionHandler(func(c *Conn) { accepted <- c })

	rec := newStateRecorder()
	l.SetStateHandler(rec.handle)
	l.Start()
	rec.waitFor(t, StateReady)
	defer l.Cancel()

	port, _ := l.Port()
	dial(t, port)
	dial(t, port)

	var first *Conn
	select {
	case first = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("first connection not delivered")
	}

	// The second stays in the kernel backlog until the first settles.
	select {
	case <-accepted:
		t.Fatal("second connection delivered before the first settled")
	case <-time.After(200 * time.Millisecond):
	}

	crec := newStateRecorder()
	first.SetStateHandler(crec.handle)
	first.Start()
	crec.waitFor(t, StateReady)

	select {
	case second := <-accepted:
		second.ForceCancel()
	case <-time.After(5 * time.Second):
		t.Fatal("second connection not delivered after the first settled")
	}
	first.ForceCancel()
}

func TestListenerAddressInUseFails(t *testing.T) {
	nl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer nl.Close()

	port := nl.Addr().(*net.TCPAddr).Port

	l, err := NewListener(ListenParameters{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	rec := newStateRecorder()
	l.SetStateHandler(rec.handle)
	l.Start()

	rec.waitFor(t, StateFailed)
	err2 := rec.lastError()
	require.NotNil(t, err2)
	assert.Equal(t, DomainPOSIX, err2.Domain)
}

func TestListenerCancelBeforeStart(t *testing.T) {
	l, err := NewListener(ListenParameters{})
	require.NoError(t, err)
	rec := newStateRecorder()
	l.SetStateHandler(rec.handle)

	l.Cancel()
	rec.waitFor(t, StateCancelled)

	l.Start()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []State{StateCancelled}, rec.states())
}
