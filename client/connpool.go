package client

import (
	"log/slog"
	"net/url"
	"sync"

	"github.com/jbourlo/http-cient/transport"
)

// connPool maps (host, port) to at most one idle connection. Lookups evict
// dropped entries; every mutation closes what it removes.
type connPool struct {
	mu    sync.Mutex
	conns map[transport.Addr]*conn

	logger *slog.Logger
}

func newConnPool(logger *slog.Logger) *connPool {
	return &connPool{
		conns:  make(map[transport.Addr]*conn),
		logger: logger,
	}
}

// get returns a live pooled connection for addr opened through the same
// proxy, or nil on a miss. A dropped or proxy-mismatched entry is evicted
// and closed.
func (p *connPool) get(addr transport.Addr, proxy *url.URL) *conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conns[addr]
	if !ok {
		return nil
	}

	delete(p.conns, addr)

	if !c.sameProxy(proxy) {
		p.logger.Debug("evicting connection, proxy changed", "addr", addr.String())
		c.close() //nolint:errcheck
		return nil
	}
	if c.dropped() {
		p.logger.Debug("evicting dropped connection", "addr", addr.String())
		c.close() //nolint:errcheck
		return nil
	}

	p.logger.Debug("reusing connection", "addr", addr.String())
	return c
}

// put returns a connection to the pool. An existing entry for the same
// address is closed first.
func (p *connPool) put(c *conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.conns[c.addr]; ok && old != c {
		old.close() //nolint:errcheck
	}
	p.conns[c.addr] = c
}

// closeConn closes c and removes it from the pool if present.
func (p *connPool) closeConn(c *conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.conns[c.addr]; ok && cur == c {
		delete(p.conns, c.addr)
	}
	c.close() //nolint:errcheck
}

// closeAddr closes and removes the entry for addr, reporting whether one
// existed.
func (p *connPool) closeAddr(addr transport.Addr) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conns[addr]
	if !ok {
		return false
	}

	delete(p.conns, addr)
	c.close() //nolint:errcheck
	return true
}

// closeAll evicts and closes every pooled connection.
func (p *connPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, c := range p.conns {
		delete(p.conns, addr)
		c.close() //nolint:errcheck
	}
}
