// Package discovery advertises listeners over mDNS/DNS-SD and browses for
// advertised ones.
//
// Listeners are published as instances of the _sockwrap._tcp service in
// the local. domain. TXT records carry the transport security mode and an
// optional free-form role:
//
//	tls=1        accepted connections negotiate TLS
//	role=echo    what the listener does with accepted connections
package discovery
