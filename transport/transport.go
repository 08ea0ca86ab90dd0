// Package transport supplies the byte-stream layer the client runs over:
// address keys, dialers for plain TCP, a pluggable TLS provider, and a
// liveness probe for pooled connections.
package transport

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

var ErrConnClosed = errors.New("connection is closed")

// Addr identifies a peer by host text and port. Host text is compared as
// provided; connection-pool keys are exact on both fields.
type Addr struct {
	Host string
	Port uint16
}

func NewAddr(host string, port uint16) Addr {
	return Addr{Host: host, Port: port}
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}

// Dialer opens a byte stream to addr.
type Dialer interface {
	Dial(ctx context.Context, addr Addr) (net.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr Addr) (net.Conn, error)

func (f DialerFunc) Dial(ctx context.Context, addr Addr) (net.Conn, error) {
	return f(ctx, addr)
}

// TCPDialer dials plain TCP. Its zero value is usable; timeouts are
// configured on its Dialer field.
type TCPDialer struct {
	Dialer net.Dialer
}

var _ Dialer = (*TCPDialer)(nil)

func (d *TCPDialer) Dial(ctx context.Context, addr Addr) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", addr)
	}
	return conn, nil
}
