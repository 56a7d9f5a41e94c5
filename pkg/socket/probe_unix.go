//go:build linux || darwin || freebsd || netbsd || openbsd

package socket

import "golang.org/x/sys/unix"

// IsPortOpen reports whether a TCP socket can currently bind and listen on
// 0.0.0.0:port. The answer is advisory; the port may be taken right after.
func IsPortOpen(port int) bool {
	if port < 0 || port > 65535 {
		return false
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return false
	}
	defer unix.Close(fd)

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return false
	}
	return unix.Listen(fd, unix.SOMAXCONN) == nil
}
