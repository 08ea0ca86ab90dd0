package transport

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/pkg/errors"
)

// TLSProvider upgrades an established stream to TLS. The client treats https
// targets as unreachable when no provider is configured.
type TLSProvider interface {
	Client(ctx context.Context, raw net.Conn, serverName string) (net.Conn, error)
}

// NativeTLS is a TLSProvider backed by crypto/tls.
type NativeTLS struct {
	// Config is cloned per connection; ServerName is filled in when unset.
	Config *tls.Config
}

var _ TLSProvider = NativeTLS{}

func (p NativeTLS) Client(ctx context.Context, raw net.Conn, serverName string) (net.Conn, error) {
	cfg := p.Config.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrapf(err, "tls handshake with %s", serverName)
	}

	return conn, nil
}
