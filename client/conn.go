package client

import (
	"bufio"
	"net"
	"net/url"

	"github.com/jbourlo/http-cient/transport"
)

// conn is one pooled connection: the raw stream, its buffered reader and
// writer, the base URI it serves, and the proxy it was opened through.
type conn struct {
	raw  net.Conn
	addr transport.Addr

	// base is scheme://host[:port] of the request that opened the conn.
	base  *url.URL
	proxy *url.URL

	br *bufio.Reader
	bw *bufio.Writer

	closed bool
}

func newConn(raw net.Conn, addr transport.Addr, base, proxy *url.URL) *conn {
	return &conn{
		raw:   raw,
		addr:  addr,
		base:  base,
		proxy: proxy,
		br:    bufio.NewReader(raw),
		bw:    bufio.NewWriter(raw),
	}
}

// dropped reports whether the connection can no longer carry a request.
func (c *conn) dropped() bool {
	if c.closed {
		return true
	}
	return transport.Dropped(c.raw, c.br)
}

func (c *conn) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.raw.Close()
}

// sameProxy reports whether the conn was opened through the given proxy.
func (c *conn) sameProxy(proxy *url.URL) bool {
	switch {
	case c.proxy == nil:
		return proxy == nil
	case proxy == nil:
		return false
	default:
		return c.proxy.String() == proxy.String()
	}
}

func baseURL(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}
