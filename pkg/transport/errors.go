package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorDomain identifies which layer of the network stack produced an Error.
type ErrorDomain uint8

const (
	// DomainPOSIX covers socket and OS-level failures.
	DomainPOSIX ErrorDomain = iota

	// DomainDNS covers name resolution failures.
	DomainDNS

	// DomainTLS covers handshake, certificate and record-layer failures.
	DomainTLS
)

// Domains returns every domain an Error can carry.
func Domains() []ErrorDomain {
	return []ErrorDomain{DomainPOSIX, DomainDNS, DomainTLS}
}

// String returns the domain name.
func (d ErrorDomain) String() string {
	switch d {
	case DomainPOSIX:
		return "posix"
	case DomainDNS:
		return "dns"
	case DomainTLS:
		return "tls"
	default:
		return fmt.Sprintf("domain(%d)", uint8(d))
	}
}

// Sentinel causes for errors produced by the provider itself.
var (
	ErrNotConnected = errors.New("connection is not ready")
	ErrCancelled    = errors.New("operation cancelled")
)

// Error is a failure reported by the provider.
type Error struct {
	// Domain is the layer that failed.
	Domain ErrorDomain

	// Code is the errno for POSIX errors and the alert number for TLS
	// alerts. Zero when no code is available.
	Code int

	// Err is the underlying Go error.
	Err error
}

// Error returns a human-readable description including the domain.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s(%d): %v", e.Domain, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Domain, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// FromError maps an arbitrary Go network error onto the closed domain set.
// Anything not recognizably DNS or TLS is treated as an OS-level failure.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var te *Error
	if errors.As(err, &te) {
		return te
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Domain: DomainDNS, Err: err}
	}

	if isTLSError(err) {
		return &Error{Domain: DomainTLS, Code: alertCode(err), Err: err}
	}

	return &Error{Domain: DomainPOSIX, Code: errnoOf(err), Err: err}
}

func notConnected(state State) *Error {
	if state == StateCancelled {
		return &Error{Domain: DomainPOSIX, Code: int(syscall.ENOTCONN), Err: ErrCancelled}
	}
	return &Error{Domain: DomainPOSIX, Code: int(syscall.ENOTCONN), Err: ErrNotConnected}
}

func isTLSError(err error) bool {
	var rhe tls.RecordHeaderError
	if errors.As(err, &rhe) {
		return true
	}
	var ae tls.AlertError
	if errors.As(err, &ae) {
		return true
	}
	var cve *tls.CertificateVerificationError
	if errors.As(err, &cve) {
		return true
	}
	var uae x509.UnknownAuthorityError
	if errors.As(err, &uae) {
		return true
	}
	var he x509.HostnameError
	if errors.As(err, &he) {
		return true
	}
	var cie x509.CertificateInvalidError
	if errors.As(err, &cie) {
		return true
	}

	// crypto/tls reports alerts as *net.OpError with these ops.
	var oe *net.OpError
	if errors.As(err, &oe) && (oe.Op == "remote error" || oe.Op == "local error") {
		return true
	}

	// Handshake failures are mostly plain errors prefixed "tls: ".
	return strings.Contains(err.Error(), "tls: ")
}

func alertCode(err error) int {
	var ae tls.AlertError
	if errors.As(err, &ae) {
		return int(ae)
	}
	return 0
}

func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return int(syscall.ETIMEDOUT)
	}
	return 0
}

// transient reports whether the provider should wait and retry rather
// than fail outright.
func (e *Error) transient() bool {
	switch e.Domain {
	case DomainDNS:
		var dnsErr *net.DNSError
		if errors.As(e.Err, &dnsErr) {
			return dnsErr.IsTemporary || dnsErr.IsTimeout
		}
	case DomainPOSIX:
		return errors.Is(e.Err, syscall.ECONNREFUSED) ||
			errors.Is(e.Err, syscall.ENETUNREACH) ||
			errors.Is(e.Err, syscall.EHOSTUNREACH) ||
			errors.Is(e.Err, syscall.ENETDOWN) ||
			errors.Is(e.Err, syscall.EADDRNOTAVAIL)
	}
	return false
}
