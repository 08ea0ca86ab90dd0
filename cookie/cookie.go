// Package cookie implements the client cookie jar: storage keyed by
// (name, domain, path), request matching, and ingestion of Set-Cookie
// (RFC 2109) and Set-Cookie2 (RFC 2965) headers.
package cookie

import (
	"net/url"
	"strings"
)

// Cookie is one stored entry together with the attributes that scope it.
type Cookie struct {
	Name  string
	Value string

	// Path scopes the cookie to a subtree of the site. Always absolute.
	Path string
	// Domain is either a host (exact match) or a ".suffix" pattern.
	Domain string
	// Ports restricts the cookie to specific ports; nil means any port.
	Ports []uint16
	// Secure restricts the cookie to https/shttp requests.
	Secure bool

	// Version is the RFC 2109/2965 version attribute.
	Version int
	// MaxAge is stored as received; the jar performs no expiry.
	MaxAge *int
}

// Identity reports the storage identity triple: name and domain fold case,
// path compares exactly.
// Reference: https://datatracker.ietf.org/doc/html/rfc2965#section-3.3.3
func (c *Cookie) Identity() (name, domain, path string) {
	return strings.ToLower(c.Name), strings.ToLower(c.Domain), c.Path
}

// SendsTo reports whether the cookie should accompany a request to u.
func (c *Cookie) SendsTo(u *url.URL) bool {
	if !domainMatch(u.Hostname(), c.Domain) {
		return false
	}
	if !c.portMatch(u) {
		return false
	}
	if !pathMatch(c.Path, u.Path) {
		return false
	}
	if c.Secure && u.Scheme != "https" && u.Scheme != "shttp" {
		return false
	}
	return true
}

func (c *Cookie) portMatch(u *url.URL) bool {
	if c.Ports == nil {
		return true
	}
	port := effectivePort(u)
	for _, p := range c.Ports {
		if p == port {
			return true
		}
	}
	return false
}

// domainMatch reports whether host is covered by pattern: exact
// case-insensitive equality, or a ".suffix" pattern the host ends with.
func domainMatch(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)

	if host == pattern {
		return true
	}
	return strings.HasPrefix(pattern, ".") && strings.HasSuffix(host, pattern)
}

// prefixCoveredByDots reports whether the part of host before its match of
// pattern itself contains a dot. Such cookies would leak to sibling
// subdomains and are rejected.
func prefixCoveredByDots(host, pattern string) bool {
	if len(pattern) >= len(host) {
		return false
	}
	prefix := host[:len(host)-len(pattern)]
	return strings.Contains(prefix, ".")
}

// pathMatch reports whether the stored path covers target: the stored path
// is absolute and its non-empty segments are a prefix of target's segments.
// A "/"-terminated stored path matches any continuation.
func pathMatch(stored, target string) bool {
	if !strings.HasPrefix(stored, "/") {
		return false
	}

	ss := nonEmptySegments(stored)
	ts := nonEmptySegments(target)
	if len(ss) > len(ts) {
		return false
	}
	for i := range ss {
		if ss[i] != ts[i] {
			return false
		}
	}
	return true
}

func nonEmptySegments(path string) []string {
	segments := make([]string, 0)
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func effectivePort(u *url.URL) uint16 {
	if p := u.Port(); p != "" {
		var port uint16
		for _, c := range p {
			if c < '0' || c > '9' {
				return 0
			}
			port = port*10 + uint16(c-'0')
		}
		return port
	}
	switch u.Scheme {
	case "http":
		return 80
	case "https", "shttp":
		return 443
	}
	return 0
}
