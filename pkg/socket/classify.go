package socket

import (
	"fmt"

	"github.com/sockwrap/sockwrap-go/pkg/transport"
)

// ErrorKind is the caller-facing category of a failure.
type ErrorKind uint8

const (
	// KindTransport covers socket and OS-level failures.
	KindTransport ErrorKind = iota + 1

	// KindNameResolution covers DNS failures.
	KindNameResolution

	// KindSecureTransport covers TLS failures.
	KindSecureTransport
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNameResolution:
		return "name-resolution"
	case KindSecureTransport:
		return "tls"
	default:
		return "unknown"
	}
}

// ClassifiedError is a transport failure reduced to one of three kinds.
type ClassifiedError struct {
	Kind        ErrorKind
	Description string

	// Cause is the transport error this was derived from.
	Cause *transport.Error
}

// Error returns the description.
func (e *ClassifiedError) Error() string {
	return e.Description
}

// Unwrap returns the transport error.
func (e *ClassifiedError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// IsTransportError reports a socket-level failure.
func (e *ClassifiedError) IsTransportError() bool {
	return e != nil && e.Kind == KindTransport
}

// IsNameResolutionError reports a DNS failure.
func (e *ClassifiedError) IsNameResolutionError() bool {
	return e != nil && e.Kind == KindNameResolution
}

// IsTLSError reports a TLS failure.
func (e *ClassifiedError) IsTLSError() bool {
	return e != nil && e.Kind == KindSecureTransport
}

var kindByDomain = map[transport.ErrorDomain]ErrorKind{
	transport.DomainPOSIX: KindTransport,
	transport.DomainDNS:   KindNameResolution,
	transport.DomainTLS:   KindSecureTransport,
}

func init() {
	for _, d := range transport.Domains() {
		if _, ok := kindByDomain[d]; !ok {
			panic(fmt.Sprintf("socket: transport error domain %s has no classification", d))
		}
	}
}

// Classify maps a transport error onto its kind. A nil error classifies
// as nil. An error from a domain outside the known set panics.
func Classify(err *transport.Error) *ClassifiedError {
	if err == nil {
		return nil
	}

	kind, ok := kindByDomain[err.Domain]
	if !ok {
		panic(fmt.Sprintf("socket: unknown transport error domain %s", err.Domain))
	}

	return &ClassifiedError{
		Kind:        kind,
		Description: err.Error(),
		Cause:       err,
	}
}
