// Package auth implements the authentication plug-in model: challenges are
// dispatched on their scheme token through a table of authenticators, with
// Basic and Digest (including auth-int) built in.
package auth

import (
	"io"
	"net/url"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Credentials is a username/password pair. The password may be empty.
type Credentials struct {
	Username string
	Password string
}

// CredentialSource resolves credentials for a protection space. Separate
// sources serve origin servers (401) and proxies (407).
type CredentialSource interface {
	Lookup(target *url.URL, realm string) (Credentials, bool)
}

// CredentialFunc adapts a function to the CredentialSource interface.
type CredentialFunc func(target *url.URL, realm string) (Credentials, bool)

func (f CredentialFunc) Lookup(target *url.URL, realm string) (Credentials, bool) {
	return f(target, realm)
}

// Static always answers with the same credentials.
type Static Credentials

func (s Static) Lookup(*url.URL, string) (Credentials, bool) {
	return Credentials(s), true
}

// Challenge is a parsed WWW-Authenticate or Proxy-Authenticate value.
type Challenge struct {
	// Scheme is the lower-cased scheme token ("basic", "digest", ...).
	Scheme string
	// Realm is the realm parameter, unquoted.
	Realm string
	// Params holds every auth parameter, keys lower-cased, values unquoted.
	Params map[string]string
}

// ParseChallenge parses a challenge header value.
func ParseChallenge(header string) (Challenge, error) {
	scheme, rest, _ := strings.Cut(strings.TrimSpace(header), " ")
	if scheme == "" {
		return Challenge{}, errors.New("empty challenge")
	}

	chal := Challenge{
		Scheme: strings.ToLower(scheme),
		Params: make(map[string]string),
	}

	for _, part := range splitParams(rest) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = unquote(strings.TrimSpace(v))
		chal.Params[k] = v
	}

	chal.Realm = chal.Params["realm"]

	return chal, nil
}

// splitParams splits on commas that are outside quoted strings.
func splitParams(s string) []string {
	parts := make([]string, 0)
	start, quoted := 0, false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Context carries everything an authenticator may need to answer a
// challenge.
type Context struct {
	// Method is the request method being retried.
	Method string
	// URI is the request target. Authenticators strip userinfo themselves.
	URI *url.URL
	// Credentials were resolved for the challenge's protection space.
	Credentials Credentials
	// Clock seeds time-derived parameters (the digest cnonce).
	Clock clock.Clock
	// Body replays the request body into w. Nil when the request has no
	// body. Digest auth-int calls it once against a hash sink.
	Body func(w io.Writer) error
}

// Authenticator answers a challenge with a credential header value.
type Authenticator interface {
	Authorize(chal Challenge, ctx Context) (string, error)
}

// Table maps lower-cased scheme tokens to authenticators.
type Table map[string]Authenticator

// DefaultTable returns a table with the built-in schemes registered.
func DefaultTable() Table {
	return Table{
		"basic":  Basic{},
		"digest": Digest{},
	}
}

// Lookup finds the authenticator for a scheme token.
func (t Table) Lookup(scheme string) (Authenticator, bool) {
	a, ok := t[strings.ToLower(scheme)]
	return a, ok
}
