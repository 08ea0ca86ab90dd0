// Package proxy selects a forward proxy for a target URI. The default
// resolver reads the conventional environment variables, honoring no-proxy
// lists and defeating the "httpoxy" attack inside CGI invocations.
package proxy

import (
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Resolver maps a target URI to a proxy URI, or to nil when the request
// should go direct.
type Resolver interface {
	ProxyFor(target *url.URL) (*url.URL, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(target *url.URL) (*url.URL, error)

func (f ResolverFunc) ProxyFor(target *url.URL) (*url.URL, error) { return f(target) }

// Direct never selects a proxy.
var Direct Resolver = ResolverFunc(func(*url.URL) (*url.URL, error) { return nil, nil })

// Environment resolves proxies from environment variables:
// no_proxy/NO_PROXY, <scheme>_proxy (lower- then upper-case),
// cgi_http_proxy inside CGI, and all_proxy/ALL_PROXY as the fallback.
type Environment struct {
	// Getenv defaults to os.Getenv; injectable for tests.
	Getenv func(string) string
}

var _ Resolver = (*Environment)(nil)

// FromEnvironment returns the default environment-driven resolver.
func FromEnvironment() *Environment {
	return &Environment{Getenv: os.Getenv}
}

func (e *Environment) ProxyFor(target *url.URL) (*url.URL, error) {
	if e.noProxyMatch(target) {
		return nil, nil
	}

	name := target.Scheme + "_proxy"
	if e.getenv("REQUEST_METHOD") != "" && target.Scheme == "http" {
		// A request-method variable means we are a CGI program; an attacker
		// controls the Proxy header and with it HTTP_PROXY. Only the
		// dedicated variable is trusted then.
		// Reference: https://httpoxy.org
		name = "cgi_http_proxy"
	}

	for _, name := range []string{name, "all_proxy"} {
		raw := e.lookup(name)
		if raw == "" {
			continue
		}

		u, err := url.Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", name)
		}
		if u.Scheme == "" || u.Host == "" {
			// Only an absolute URI names a usable proxy.
			return nil, nil
		}
		return u, nil
	}

	return nil, nil
}

// lookup consults the lower-case name first, then the upper-case one.
func (e *Environment) lookup(name string) string {
	if v := e.getenv(name); v != "" {
		return v
	}
	return e.getenv(strings.ToUpper(name))
}

func (e *Environment) getenv(name string) string {
	if e.Getenv != nil {
		return e.Getenv(name)
	}
	return os.Getenv(name)
}

// noProxyMatch reports whether the no-proxy list exempts target. Each entry
// is host[:port]: the host pattern matches exactly (case-insensitively), by
// suffix when it starts with "*", or everything when it is just "*"; a port,
// when given, must match the target's effective port exactly.
func (e *Environment) noProxyMatch(target *url.URL) bool {
	list := e.lookup("no_proxy")
	if list == "" {
		return false
	}

	host := strings.ToLower(target.Hostname())
	port := effectivePort(target)

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		pattern := entry
		patternPort := ""
		if idx := strings.LastIndex(entry, ":"); idx >= 0 && !strings.Contains(entry[idx+1:], "]") {
			pattern, patternPort = entry[:idx], entry[idx+1:]
		}

		if patternPort != "" && patternPort != port {
			continue
		}

		pattern = strings.ToLower(pattern)
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "*"):
			if strings.HasSuffix(host, pattern[1:]) {
				return true
			}
		case pattern == host:
			return true
		}
	}

	return false
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch u.Scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
