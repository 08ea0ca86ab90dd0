package cookie

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, rawurl string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawurl)
	require.NoError(t, err)
	return u
}

func TestDomainMatch(t *testing.T) {
	testcases := []struct {
		host    string
		pattern string
		matches bool
	}{
		{"example.com", "example.com", true},
		{"EXAMPLE.com", "example.COM", true},
		{"www.example.com", ".example.com", true},
		{"example.com", ".example.com", false},
		{"www.example.com", "example.com", false},
		{"evilexample.com", ".example.com", false},
		{"sub.deep.example.com", ".example.com", true},
	}

	for _, tc := range testcases {
		t.Run(tc.host+"/"+tc.pattern, func(t *testing.T) {
			assert.Equal(t, tc.matches, domainMatch(tc.host, tc.pattern))
		})
	}
}

func TestPrefixCoveredByDots(t *testing.T) {
	testcases := []struct {
		host    string
		pattern string
		covered bool
	}{
		{"www.example.com", ".example.com", false},
		{"a.b.example.com", ".example.com", true},
		{"example.com", "example.com", false},
		{"b.example.com", ".example.com", false},
	}

	for _, tc := range testcases {
		t.Run(tc.host, func(t *testing.T) {
			assert.Equal(t, tc.covered, prefixCoveredByDots(tc.host, tc.pattern))
		})
	}
}

func TestPathMatch(t *testing.T) {
	testcases := []struct {
		stored  string
		target  string
		matches bool
	}{
		{"/", "/anything/below", true},
		{"/a/b", "/a/b", true},
		{"/a/b", "/a/b/c", true},
		{"/a/b/", "/a/b/c", true},
		{"/a/b", "/a/bc", false},
		{"/a/b", "/a", false},
		{"relative", "/a", false},
	}

	for _, tc := range testcases {
		t.Run(tc.stored+" vs "+tc.target, func(t *testing.T) {
			assert.Equal(t, tc.matches, pathMatch(tc.stored, tc.target))
		})
	}
}

func TestSendsTo(t *testing.T) {
	testcases := []struct {
		desc   string
		cookie Cookie
		target string
		sends  bool
	}{
		{
			desc:   "plain match",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/"},
			target: "http://example.com/x",
			sends:  true,
		},
		{
			desc:   "wrong domain",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/"},
			target: "http://other.com/",
			sends:  false,
		},
		{
			desc:   "path too specific",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/admin"},
			target: "http://example.com/public",
			sends:  false,
		},
		{
			desc:   "secure cookie on http",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/", Secure: true},
			target: "http://example.com/",
			sends:  false,
		},
		{
			desc:   "secure cookie on https",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/", Secure: true},
			target: "https://example.com/",
			sends:  true,
		},
		{
			desc:   "port restricted, matching default",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/", Ports: []uint16{80}},
			target: "http://example.com/",
			sends:  true,
		},
		{
			desc:   "port restricted, not matching",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/", Ports: []uint16{8080}},
			target: "http://example.com/",
			sends:  false,
		},
		{
			desc:   "explicit port in list",
			cookie: Cookie{Name: "a", Domain: "example.com", Path: "/", Ports: []uint16{8080, 9090}},
			target: "http://example.com:9090/",
			sends:  true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.sends, tc.cookie.SendsTo(mustParse(t, tc.target)))
		})
	}
}
