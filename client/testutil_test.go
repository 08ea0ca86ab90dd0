package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/jbourlo/http-cient/transport"
	"github.com/pkg/errors"
)

// stubDialer hands out pre-queued connections and records the addresses
// dialed.
type stubDialer struct {
	mu    sync.Mutex
	conns []net.Conn
	addrs []transport.Addr
}

var _ transport.Dialer = (*stubDialer)(nil)

func (d *stubDialer) Dial(_ context.Context, addr transport.Addr) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.addrs = append(d.addrs, addr)
	if len(d.conns) == 0 {
		return nil, errors.New("no scripted connection available")
	}

	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func (d *stubDialer) queue(c net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, c)
}

func (d *stubDialer) dials() []transport.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]transport.Addr, len(d.addrs))
	copy(out, d.addrs)
	return out
}

// readHead reads one request head off c, terminator included.
func readHead(c net.Conn) (string, error) {
	buf := make([]byte, 1)
	head := new(bytes.Buffer)
	for !bytes.HasSuffix(head.Bytes(), []byte("\r\n\r\n")) {
		if _, err := c.Read(buf); err != nil {
			return head.String(), err
		}
		head.Write(buf)
	}
	return head.String(), nil
}

// readRequest reads a request head plus its content-length delimited body.
func readRequest(c net.Conn) (head, body string, _ error) {
	head, err := readHead(c)
	if err != nil {
		return head, "", err
	}

	n := 0
	if v, ok := headerIn(head, "Content-Length"); ok {
		n, err = strconv.Atoi(v)
		if err != nil {
			return head, "", err
		}
	}
	if n == 0 {
		return head, "", nil
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(c, b); err != nil {
		return head, string(b), err
	}
	return head, string(b), nil
}

func requestLineIn(head string) string {
	line, _, _ := strings.Cut(head, "\r\n")
	return line
}

func headerIn(head, name string) (string, bool) {
	for _, line := range strings.Split(head, "\r\n")[1:] {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// readAll is the BodyReader used throughout the tests: it returns the whole
// body as a string.
func readAll(res *Response) (any, error) {
	b, err := io.ReadAll(res.Body)
	return string(b), err
}
