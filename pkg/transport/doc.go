// Package transport is the connection provider underneath package socket.
//
// It turns the blocking primitives of the Go network stack (net.Dialer,
// net.Listener, crypto/tls) into objects that report their lifecycle as a
// stream of state updates and complete I/O through callbacks:
//   - Conn: an outbound or accepted TCP connection, optionally TLS-wrapped
//   - Listener: a bound TCP endpoint producing accepted Conns
//   - Error: the closed set of failures the provider can report
//
// # States
//
//	setup ──► preparing ──► ready ──► cancelled
//	              │  ▲         │
//	              ▼  │         ▼
//	            waiting ──► failed ──► cancelled
//
// Waiting means a transient failure (refused, unreachable, temporary DNS
// error). The provider retries on its own with backoff until the connect
// timeout elapses, then moves to failed with the last error.
//
// # Delivery
//
// State updates of one Conn or Listener are delivered strictly in order on
// that instance's serial queue, never on the caller's goroutine. Send and
// receive completions run on their own queues and are not ordered with
// respect to state updates: a receive may complete after failed has been
// reported.
//
// # Errors
//
// Every failure is reported as *Error carrying one of the ErrorDomain
// values returned by Domains. The set is closed; consumers may map it
// exhaustively.
package transport
