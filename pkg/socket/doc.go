// Package socket wraps TCP and TLS connections and listeners behind a
// small callback API.
//
// A Connection reports its lifecycle through a single replaceable state
// handler and performs one read or one write per call, completing through
// a handler. A Listener accepts inbound connections, lets each negotiate
// to ready, and hands only the ready ones to the accepted callback.
//
// Failures reach callers as a ClassifiedError of exactly one kind:
// transport, name resolution or TLS.
//
// Callbacks run on background goroutines. State updates for one
// Connection or Listener are delivered in order, one at a time; read and
// write completions are not ordered relative to them.
package socket
