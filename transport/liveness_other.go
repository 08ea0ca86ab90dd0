//go:build !(linux || darwin)

package transport

import "net"

func sysPeek(net.Conn) (dropped, checked bool) { return false, false }
