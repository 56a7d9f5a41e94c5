package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		domain ErrorDomain
		code   int
	}{
		{
			name:   "refused",
			err:    &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			domain: DomainPOSIX,
			code:   int(syscall.ECONNREFUSED),
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("read: %w", os.ErrDeadlineExceeded),
			domain: DomainPOSIX,
			code:   int(syscall.ETIMEDOUT),
		},
		{
			name:   "dns",
			err:    &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}},
			domain: DomainDNS,
		},
		{
			name:   "tls alert",
			err:    &net.OpError{Op: "remote error", Err: tls.AlertError(40)},
			domain: DomainTLS,
			code:   40,
		},
		{
			name:   "tls record header",
			err:    tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"},
			domain: DomainTLS,
		},
		{
			name:   "plain",
			err:    errors.New("something broke"),
			domain: DomainPOSIX,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.domain, got.Domain)
			assert.Equal(t, tt.code, got.Code)
			assert.True(t, errors.Is(got, tt.err) || got.Err == tt.err)
		})
	}
}

func TestFromErrorPassthrough(t *testing.T) {
	orig := &Error{Domain: DomainTLS, Code: 7, Err: errors.New("x")}
	assert.Same(t, orig, FromError(fmt.Errorf("wrapped: %w", orig)))
	assert.Nil(t, FromError(nil))
}

func TestErrorString(t *testing.T) {
	e := &Error{Domain: DomainPOSIX, Code: 61, Err: errors.New("connection refused")}
	assert.Equal(t, "posix(61): connection refused", e.Error())

	e = &Error{Domain: DomainDNS, Err: errors.New("no such host")}
	assert.Equal(t, "dns: no such host", e.Error())
}

func TestTransient(t *testing.T) {
	refused := FromError(os.NewSyscallError("connect", syscall.ECONNREFUSED))
	assert.True(t, refused.transient())

	reset := FromError(os.NewSyscallError("read", syscall.ECONNRESET))
	assert.False(t, reset.transient())

	temp := FromError(&net.DNSError{Err: "timeout", IsTimeout: true})
	assert.True(t, temp.transient())

	notFound := FromError(&net.DNSError{Err: "no such host", IsNotFound: true})
	assert.False(t, notFound.transient())

	tlsErr := FromError(tls.RecordHeaderError{})
	assert.False(t, tlsErr.transient())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "setup", StateSetup.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "unknown", State(99).String())

	assert.True(t, StateWaiting.HasError())
	assert.True(t, StateFailed.HasError())
	assert.False(t, StateReady.HasError())
}

func TestDomainsCoverStrings(t *testing.T) {
	for _, d := range Domains() {
		assert.NotContains(t, d.String(), "domain(")
	}
}

func TestInsecureClientTLSConfig(t *testing.T) {
	cfg := NewInsecureClientTLSConfig("example.com")
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "example.com", cfg.ServerName)

	cfg = NewInsecureClientTLSConfig("10.0.0.1")
	assert.Empty(t, cfg.ServerName)
}

func TestServerTLSConfigRequiresCertificate(t *testing.T) {
	_, err := NewServerTLSConfig(tls.Certificate{})
	assert.Error(t, err)
}
