//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package socket

import (
	"net"
	"strconv"
)

// IsPortOpen reports whether a TCP listener can currently be opened on
// 0.0.0.0:port. The answer is advisory; the port may be taken right after.
func IsPortOpen(port int) bool {
	if port < 0 || port > 65535 {
		return false
	}

	nl, err := net.Listen("tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	nl.Close()
	return true
}
