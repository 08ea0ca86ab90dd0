//go:build linux || darwin

package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysPeek probes the socket with a non-blocking MSG_PEEK recv. A zero-byte
// result is EOF from the peer; EAGAIN means the socket is idle and open.
func sysPeek(c net.Conn) (dropped, checked bool) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return false, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return false, false
	}

	buf := make([]byte, 1)
	ctrlErr := rc.Control(func(fd uintptr) {
		n, _, err := unix.Recvfrom(int(fd), buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			dropped = false
		case err != nil:
			dropped = true
		case n == 0:
			dropped = true
		default:
			dropped = false
		}
	})
	if ctrlErr != nil {
		return false, false
	}

	return dropped, true
}
