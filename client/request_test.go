package client

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbourlo/http-cient/iolib"
	"github.com/jbourlo/http-cient/lib/pointer"
	"github.com/jbourlo/http-cient/wire"
)

func parse(t *testing.T, rawurl string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawurl)
	require.NoError(t, err)
	return u
}

func TestOutboundTarget(t *testing.T) {
	testcases := []struct {
		desc     string
		url      string
		absolute bool
		want     string
	}{
		{desc: "origin form", url: "http://a/x/y", want: "/x/y"},
		{desc: "empty path becomes slash", url: "http://a", want: "/"},
		{desc: "query preserved", url: "http://a/x?k=v", want: "/x?k=v"},
		{desc: "fragment stripped", url: "http://a/x#frag", want: "/x"},
		{desc: "userinfo stripped", url: "http://u:p@a/x", want: "/x"},
		{desc: "absolute form", url: "http://a/x", absolute: true, want: "http://a/x"},
		{desc: "absolute empty path", url: "http://a", absolute: true, want: "http://a/"},
		{desc: "absolute strips userinfo", url: "http://u:p@a/x#f", absolute: true, want: "http://a/x"},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, outboundTarget(parse(t, tc.url), tc.absolute))
		})
	}
}

func TestHostHeader(t *testing.T) {
	testcases := []struct {
		url  string
		want string
	}{
		{url: "http://a.example/", want: "a.example"},
		{url: "http://a.example:80/", want: "a.example"},
		{url: "http://a.example:8080/", want: "a.example:8080"},
		{url: "https://a.example:443/", want: "a.example"},
		{url: "https://a.example:80/", want: "a.example:80"},
	}

	for _, tc := range testcases {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, hostHeader(parse(t, tc.url)))
		})
	}
}

func TestAddrOf(t *testing.T) {
	assert.Equal(t, "a.example:80", addrOf(parse(t, "http://a.example/")).String())
	assert.Equal(t, "a.example:443", addrOf(parse(t, "https://a.example/")).String())
	assert.Equal(t, "a.example:8080", addrOf(parse(t, "http://a.example:8080/")).String())
}

func TestKeepAlive(t *testing.T) {
	res := func(version wire.Version, connection string) *Response {
		h := wire.NewHeaders()
		if connection != "" {
			h.Set("Connection", connection)
		}
		return &Response{Version: version, Header: h}
	}

	testcases := []struct {
		desc string
		res  *Response
		want bool
	}{
		{desc: "1.1 default", res: res(wire.V11, ""), want: true},
		{desc: "1.1 close", res: res(wire.V11, "close"), want: false},
		{desc: "1.1 close among tokens", res: res(wire.V11, "Upgrade, Close"), want: false},
		{desc: "1.0 default", res: res(wire.V10, ""), want: false},
		{desc: "1.0 keep-alive", res: res(wire.V10, "keep-alive"), want: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, responseKeepAlive(tc.res))
		})
	}
}

func TestRequestKeepAlive(t *testing.T) {
	h := wire.NewHeaders()
	assert.True(t, requestKeepAlive(h))

	h.Set("Connection", "close")
	assert.False(t, requestKeepAlive(h))
}

func TestReusable(t *testing.T) {
	body := func(length uint64, drain bool) *Response {
		r := &Response{
			Version: wire.V11,
			Header:  wire.NewHeaders(),
			Body:    iolib.Delimit(strings.NewReader(strings.Repeat("x", int(length))), pointer.To(length)),
		}
		if drain {
			require.NoError(t, iolib.Drain(r.Body))
		}
		return r
	}

	t.Run("drained keep-alive body is reusable", func(t *testing.T) {
		assert.True(t, body(4, true).reusable())
	})

	t.Run("undrained body is not", func(t *testing.T) {
		assert.False(t, body(4, false).reusable())
	})

	t.Run("request side declined", func(t *testing.T) {
		res := body(0, true)
		res.reqClose = true
		assert.False(t, res.reusable())
	})

	t.Run("unknown length is never reusable", func(t *testing.T) {
		res := &Response{Version: wire.V11, Header: wire.NewHeaders(), Body: strings.NewReader("")}
		assert.False(t, res.reusable())
	})
}

func TestContentLengthOf(t *testing.T) {
	h := wire.NewHeaders()
	got, err := contentLengthOf(h)
	require.NoError(t, err)
	assert.Nil(t, got)

	h.Set("Content-Length", "42")
	got, err = contentLengthOf(h)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(42), *got)

	h.Set("Content-Length", "forty-two")
	_, err = contentLengthOf(h)
	assert.Error(t, err)
}

func TestRequestClone(t *testing.T) {
	req, err := NewRequest("GET", "http://a.example/x")
	require.NoError(t, err)
	req.Header.Set("X-Trace", "1")

	clone := req.clone()
	clone.Method = "POST"
	clone.URL.Path = "/y"
	clone.Header.Set("X-Trace", "2")

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/x", req.URL.Path)
	v, _ := req.Header.Get("X-Trace")
	assert.Equal(t, "1", v)
}
