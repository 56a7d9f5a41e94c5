package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	socklog "github.com/sockwrap/sockwrap-go/pkg/log"
)

// syncBuffer is a bytes.Buffer safe for the shell's asynchronous output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testShell() (*shell, *syncBuffer) {
	out := &syncBuffer{}
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.CloseTimeout = time.Second
	return newShell(cfg, socklog.NoopLogger{}, out), out
}

func TestShellSession(t *testing.T) {
	port := peer(t, func(c net.Conn) { io.Copy(c, c) })
	sh, out := testShell()
	ctx := context.Background()

	assert.False(t, sh.exec(ctx, "connect 127.0.0.1 "+strconv.Itoa(int(port))))
	require.Contains(t, out.String(), "Connected")
	require.NotNil(t, sh.current())

	sh.exec(ctx, "send hello   world")
	assert.Contains(t, out.String(), "Sent 14 bytes")

	sh.exec(ctx, "read")
	assert.Contains(t, out.String(), `"hello   world\n"`)

	sh.exec(ctx, "state")
	assert.Contains(t, out.String(), "State:       ready")

	sh.exec(ctx, "close")
	assert.Contains(t, out.String(), "Closed")
	assert.Nil(t, sh.current())

	sh.exec(ctx, "send again")
	assert.Contains(t, out.String(), "Not connected")
}

func TestShellConnectRefused(t *testing.T) {
	nl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := nl.Addr().(*net.TCPAddr).Port
	nl.Close()

	sh, out := testShell()
	sh.cfg.Timeout = 0

	sh.exec(context.Background(), "connect 127.0.0.1 "+strconv.Itoa(port))
	assert.Contains(t, out.String(), "Connect failed")
	assert.Nil(t, sh.current())
}

func TestShellUsage(t *testing.T) {
	sh, out := testShell()
	ctx := context.Background()

	tests := []struct {
		line string
		want string
	}{
		{"connect", "Usage: connect"},
		{"connect host notaport", "Invalid port"},
		{"read", "Not connected"},
		{"state", "Not connected"},
		{"reset", "Not connected"},
		{"probe", "Usage: probe"},
		{"probe x", "Invalid port"},
		{"browse -1", "Invalid duration"},
		{"frobnicate", "Unknown command: frobnicate"},
		{"help", "Commands:"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			before := len(out.String())
			assert.False(t, sh.exec(ctx, tt.line))
			assert.Contains(t, out.String()[before:], tt.want)
		})
	}

	assert.False(t, sh.exec(ctx, "   "))
	assert.True(t, sh.exec(ctx, "quit"))
	assert.True(t, strings.HasSuffix(out.String(), "Exiting...\n"))
}

func TestShellProbe(t *testing.T) {
	nl, err := net.Listen("tcp4", "0.0.0.0:0")
	require.NoError(t, err)
	defer nl.Close()
	port := nl.Addr().(*net.TCPAddr).Port

	sh, out := testShell()
	sh.exec(context.Background(), "probe "+strconv.Itoa(port))
	assert.Contains(t, out.String(), "in use")
}
