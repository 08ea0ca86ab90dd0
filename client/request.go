package client

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/jbourlo/http-cient/iolib"
	"github.com/jbourlo/http-cient/transport"
	"github.com/jbourlo/http-cient/wire"
	"github.com/pkg/errors"
)

// BodyWriter streams the request body to w. The execution loop calls it
// exactly once per attempt, so it must be safe to call again on retries,
// redirects, and authentication retries.
type BodyWriter func(req *Request, w io.Writer) error

// BodyReader consumes the delimited response body and produces the call's
// result value.
type BodyReader func(res *Response) (any, error)

// Request is an in-flight request description.
type Request struct {
	Method string
	URL    *url.URL
	Header wire.Headers
}

// NewRequest builds a request for rawurl with an empty header set.
func NewRequest(method, rawurl string) (*Request, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, errors.Wrap(err, "parsing request uri")
	}
	return &Request{Method: method, URL: u, Header: wire.NewHeaders()}, nil
}

func (r *Request) clone() *Request {
	u := *r.URL
	return &Request{Method: r.Method, URL: &u, Header: r.Header.Clone()}
}

// Response is a parsed response head with its body positioned at the framing
// boundary.
type Response struct {
	Status  int
	Reason  string
	Version wire.Version
	Header  wire.Headers

	// ContentLength is the parsed Content-Length header, nil when absent.
	ContentLength *uint64

	// Body reports EOF at the end of this message's payload when
	// ContentLength is known, and at connection close otherwise. Responses
	// to HEAD requests and 204 or 304 responses have an empty Body.
	Body io.Reader

	conn     *conn
	reqClose bool
	deferred bool
}

// addrOf is the pool key of u: host text as given, explicit or scheme
// default port.
func addrOf(u *url.URL) transport.Addr {
	host := u.Hostname()
	port := uint16(80)
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		if v, err := strconv.ParseUint(p, 10, 16); err == nil {
			port = uint16(v)
		}
	}
	return transport.NewAddr(host, port)
}

// hostHeader renders the Host header value, omitting the scheme's default
// port.
func hostHeader(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		return host
	}
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		return host
	}
	return host + ":" + port
}

// outboundTarget renders the request-line target: the absolute URI when the
// request goes through a proxy in the clear, the origin form otherwise.
// Fragment and userinfo never reach the wire.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc2616#section-5.1.2
func outboundTarget(u *url.URL, absolute bool) string {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	clean.User = nil

	if absolute {
		if clean.Path == "" {
			clean.Path = "/"
		}
		return clean.String()
	}

	target := clean.EscapedPath()
	if target == "" {
		target = "/"
	}
	if clean.RawQuery != "" {
		target += "?" + clean.RawQuery
	}
	return target
}

// requestKeepAlive reports whether the request side asserts persistence.
func requestKeepAlive(h wire.Headers) bool {
	return !hasConnToken(h, "close")
}

// responseKeepAlive reports whether the response side asserts persistence:
// HTTP/1.1 defaults to keep-alive unless closed; HTTP/1.0 requires the
// keep-alive token.
func responseKeepAlive(res *Response) bool {
	if hasConnToken(res.Header, "close") {
		return false
	}
	if res.Version == wire.V10 {
		return hasConnToken(res.Header, "keep-alive")
	}
	return true
}

func hasConnToken(h wire.Headers, token string) bool {
	for _, v := range h.Values("Connection") {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

// reusable reports whether the connection that carried res may go back to
// the pool: both sides asserted keep-alive and the body was fully consumed.
func (res *Response) reusable() bool {
	if res.reqClose || !responseKeepAlive(res) {
		return false
	}
	return iolib.Drained(res.Body)
}

func contentLengthOf(h wire.Headers) (*uint64, error) {
	v, ok := h.Get("Content-Length")
	if !ok {
		return nil, nil
	}
	length, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parsing Content-Length")
	}
	return &length, nil
}
