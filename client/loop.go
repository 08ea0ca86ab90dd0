package client

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jbourlo/http-cient/auth"
	"github.com/jbourlo/http-cient/cookie"
	"github.com/jbourlo/http-cient/iolib"
	"github.com/jbourlo/http-cient/wire"
	"github.com/pkg/errors"
)

// DoWith runs the request execution loop: acquire a connection, send the
// request, parse the response, ingest cookies, then either follow a
// redirect, answer an authentication challenge, honor a 305 proxy hint,
// retry a transport failure, or hand the delimited body to read.
//
// write is invoked exactly once per attempt and must tolerate being invoked
// again on subsequent attempts. read receives every terminal response,
// whatever its status; its return value is the call's value. The connection
// used by the final attempt is released or closed before DoWith returns.
func (c *Client) DoWith(ctx context.Context, req *Request, write BodyWriter, read BodyReader) (any, *url.URL, *Response, error) {
	if read == nil {
		read = func(res *Response) (any, error) {
			return nil, iolib.Drain(res.Body)
		}
	}

	var (
		attempts  int
		redirects int

		cur           = req.clone()
		curWrite      = write
		overrideProxy *url.URL
	)

	for {
		pxy, err := c.selectProxy(cur.URL, &overrideProxy)
		if err != nil {
			return nil, nil, nil, err
		}

		if cur.URL.Scheme != "http" && cur.URL.Scheme != "https" {
			return nil, nil, nil, newError(TagUnsupportedURIScheme, "scheme is not http or https").
				with("request-uri", cur.URL.String())
		}

		cn, err := c.acquire(ctx, cur.URL, pxy)
		if err != nil {
			if _, tagged := TagOf(err); tagged {
				return nil, nil, nil, err
			}
			attempts++
			if withinLimit(attempts, c.opts.Retry.MaxAttempts) && c.opts.Retry.Retryable(cur) {
				c.logger.Debug("retrying after connect failure", "attempts", attempts, "error", err.Error())
				continue
			}
			return nil, nil, nil, err
		}

		res, err := c.exchange(ctx, cn, cur, curWrite, pxy)
		if err != nil {
			c.pool.closeConn(cn)

			if errors.Is(err, wire.ErrNoResponse) {
				attempts++
				if withinLimit(attempts, c.opts.Retry.MaxAttempts) && c.opts.Retry.Retryable(cur) {
					c.logger.Debug("retrying after premature disconnection", "attempts", attempts)
					continue
				}
				return nil, nil, nil, newError(TagPrematureDisconnection, "server closed connection before replying").
					with("request-uri", cur.URL.String()).
					wrap(err)
			}

			if isTransportErr(err) {
				attempts++
				if withinLimit(attempts, c.opts.Retry.MaxAttempts) && c.opts.Retry.Retryable(cur) {
					c.logger.Debug("retrying after transport failure", "attempts", attempts, "error", err.Error())
					continue
				}
				return nil, nil, nil, err
			}

			// Protocol or caller failure; the stream state is unknown, the
			// connection is already closed.
			return nil, nil, nil, err
		}

		// Cookies are ingested before status dispatch so interim responses
		// contribute to the jar too.
		if n := c.opts.Jar.Update(cur.URL, res.Header.Values("Set-Cookie"), res.Header.Values("Set-Cookie2")); n > 0 {
			c.logger.Debug("stored cookies", "count", n, "request-uri", cur.URL.String())
		}

		switch res.Status {
		case 301, 302, 303, 307:
			redirects++
			if !withinLimit(redirects, c.opts.Redirect.MaxDepth) {
				c.pool.closeConn(cn)
				return nil, nil, nil, newError(TagRedirectDepthExceeded, "too many redirects").
					with("request-uri", cur.URL.String()).
					withStatus(res.Status)
			}

			loc, err := redirectTarget(cur.URL, res.Header)
			if err != nil {
				c.pool.closeConn(cn)
				return nil, nil, nil, err
			}

			c.finishInterim(cn, res)
			cur.URL = loc
			if res.Status == 303 && cur.Method != "GET" {
				// See Other demands a body-less GET of the result.
				cur.Method = "GET"
				curWrite = nil
				cur.Header.Del("Content-Length")
				cur.Header.Del("Content-Type")
				cur.Header.Del("Transfer-Encoding")
			}
			c.logger.Debug("following redirect", "status", res.Status, "location", loc.String())
			continue

		case 305:
			loc, err := redirectTarget(cur.URL, res.Header)
			if err != nil {
				c.pool.closeConn(cn)
				return nil, nil, nil, err
			}

			c.finishInterim(cn, res)
			// One-shot override: consumed by the next proxy selection,
			// reverting to the configured resolver afterwards. Not counted
			// against the redirect depth.
			overrideProxy = loc
			c.logger.Debug("using proxy from 305", "proxy", loc.String())
			continue

		case 401, 407:
			next, err := c.authenticate(cur, res, curWrite)
			if err != nil {
				c.pool.closeConn(cn)
				return nil, nil, nil, err
			}
			if next != nil {
				attempts++
				if withinLimit(attempts, c.opts.Retry.MaxAttempts) {
					c.finishInterim(cn, res)
					cur = next
					c.logger.Debug("answering authentication challenge", "status", res.Status)
					continue
				}
			}
			// No way to authenticate, or attempts exhausted: the challenge
			// response is the result.
			return c.deliver(cn, cur, res, read)

		default:
			return c.deliver(cn, cur, res, read)
		}
	}
}

// selectProxy consults the one-shot 305 override first, clearing it, and
// falls back to the configured resolver.
func (c *Client) selectProxy(u *url.URL, override **url.URL) (*url.URL, error) {
	if *override != nil {
		p := *override
		*override = nil
		return p, nil
	}

	p, err := c.opts.Proxy.ProxyFor(u)
	if err != nil {
		return nil, errors.Wrap(err, "resolving proxy")
	}
	return p, nil
}

// acquire returns a pooled connection for u, or opens one: plain TCP,
// through a CONNECT tunnel when an https target is proxied, TLS on top for
// https.
func (c *Client) acquire(ctx context.Context, u *url.URL, pxy *url.URL) (*conn, error) {
	addr := addrOf(u)
	if cn := c.pool.get(addr, pxy); cn != nil {
		return cn, nil
	}

	if u.Scheme == "https" && c.opts.TLS == nil {
		return nil, newError(TagMissingTLSProvider, "https requested without a TLS provider").
			with("request-uri", u.String())
	}

	dialAddr := addr
	if pxy != nil {
		dialAddr = addrOf(pxy)
	}

	raw, err := c.opts.Dialer.Dial(ctx, dialAddr)
	if err != nil {
		return nil, errors.Wrap(err, "connecting")
	}

	if u.Scheme == "https" {
		if pxy != nil {
			if err := connectTunnel(raw, u, pxy); err != nil {
				raw.Close() //nolint:errcheck
				return nil, err
			}
		}
		tlsConn, err := c.opts.TLS.Client(ctx, raw, u.Hostname())
		if err != nil {
			raw.Close() //nolint:errcheck
			return nil, err
		}
		raw = tlsConn
	}

	c.logger.Debug("opened connection", "addr", addr.String())
	return newConn(raw, addr, baseURL(u), pxy), nil
}

// connectTunnel asks the proxy to open a tunnel to the target, carrying
// basic proxy credentials from the proxy URI's userinfo.
func connectTunnel(raw net.Conn, target, pxy *url.URL) error {
	hp := addrOf(target).String()

	headers := wire.NewHeaders()
	headers.Set("Host", hp)
	if ui := pxy.User; ui != nil {
		pass, _ := ui.Password()
		pair := ui.Username() + ":" + pass
		headers.Set("Proxy-Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(pair)))
	}

	bw := bufio.NewWriter(raw)
	enc := wire.NewRequestEncoder(bw)
	if err := enc.Encode(wire.RequestLine{Method: "CONNECT", Target: hp, Version: wire.V11}, headers); err != nil {
		return errors.Wrap(err, "writing CONNECT request")
	}

	var head wire.ResponseHead
	dec := wire.NewResponseDecoder(bufio.NewReader(raw), wire.DecodeOptions{})
	if err := dec.Decode(&head); err != nil {
		return errors.Wrap(err, "reading CONNECT response")
	}
	if head.StatusCode != 200 {
		return errors.Errorf("proxy refused CONNECT: %d %s", head.StatusCode, head.ReasonPhrase)
	}

	return nil
}

// exchange performs one request/response round on cn: merge default
// headers, serialize the head, stream the body, flush, parse the reply, and
// frame its body.
func (c *Client) exchange(ctx context.Context, cn *conn, req *Request, write BodyWriter, pxy *url.URL) (*Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		cn.raw.SetDeadline(deadline) //nolint:errcheck
	} else {
		cn.raw.SetDeadline(time.Time{}) //nolint:errcheck
	}

	headers := c.mergeHeaders(req)
	target := outboundTarget(req.URL, pxy != nil && req.URL.Scheme == "http")

	enc := wire.NewRequestEncoder(cn.bw)
	if err := enc.Encode(wire.RequestLine{Method: req.Method, Target: target, Version: wire.V11}, headers); err != nil {
		return nil, errors.Wrap(err, "writing request head")
	}

	if write != nil {
		if isChunked(headers) {
			cw := wire.NewChunkedWriter(cn.bw)
			if err := write(req, cw); err != nil {
				return nil, errors.Wrap(err, "writing request body")
			}
			if err := cw.Close(); err != nil {
				return nil, errors.Wrap(err, "closing chunked body")
			}
		} else if err := write(req, cn.bw); err != nil {
			return nil, errors.Wrap(err, "writing request body")
		}
	}

	if err := cn.bw.Flush(); err != nil {
		return nil, errors.Wrap(err, "flushing request")
	}

	var head wire.ResponseHead
	if err := wire.NewResponseDecoder(cn.br, wire.DecodeOptions{}).Decode(&head); err != nil {
		return nil, err
	}

	length, err := contentLengthOf(head.Headers)
	if err != nil {
		return nil, err
	}

	res := &Response{
		Status:        head.StatusCode,
		Reason:        head.ReasonPhrase,
		Version:       head.Version,
		Header:        head.Headers,
		ContentLength: length,
		reqClose:      !requestKeepAlive(headers),
	}

	if req.Method == "HEAD" || res.Status == 204 || res.Status == 304 {
		zero := uint64(0)
		res.Body = iolib.Delimit(cn.br, &zero)
	} else {
		res.Body = iolib.Delimit(cn.br, length)
	}

	return res, nil
}

// mergeHeaders clones the request headers and fills in the defaults:
// matching cookies, Host without the default port, and the configured
// User-Agent. Caller-set headers win.
func (c *Client) mergeHeaders(req *Request) wire.Headers {
	h := req.Header.Clone()
	if !h.Has("Host") {
		h.Set("Host", hostHeader(req.URL))
	}
	if !h.Has("User-Agent") {
		h.Set("User-Agent", c.opts.UserAgent)
	}
	if !h.Has("Cookie") {
		if cookies := c.opts.Jar.CookiesFor(req.URL); len(cookies) > 0 {
			h.Set("Cookie", cookie.SendValue(cookies))
		}
	}
	return h
}

func isChunked(h wire.Headers) bool {
	for _, v := range h.Values("Transfer-Encoding") {
		if v == "chunked" {
			return true
		}
	}
	return false
}

// authenticate answers a 401/407 challenge. It returns the follow-up
// request, nil when no authenticator applies or no credentials exist, and an
// error for an unregistered scheme.
func (c *Client) authenticate(req *Request, res *Response, write BodyWriter) (*Request, error) {
	challengeHeader, credHeader := "WWW-Authenticate", "Authorization"
	source := c.opts.ServerCredentials
	if res.Status == 407 {
		challengeHeader, credHeader = "Proxy-Authenticate", "Proxy-Authorization"
		source = c.opts.ProxyCredentials
	}

	raw, ok := res.Header.Get(challengeHeader)
	if !ok {
		return nil, nil
	}

	chal, err := auth.ParseChallenge(raw)
	if err != nil {
		return nil, nil
	}

	authenticator, ok := c.opts.Authenticators.Lookup(chal.Scheme)
	if !ok {
		return nil, newError(TagUnknownAuthType, "no authenticator for challenge").
			with("authtype", chal.Scheme).
			with("request-uri", req.URL.String()).
			withStatus(res.Status)
	}

	creds, ok := c.credentials(source, req.URL, chal.Realm, res.Status == 401)
	if !ok {
		return nil, nil
	}

	authCtx := auth.Context{
		Method:      req.Method,
		URI:         req.URL,
		Credentials: creds,
		Clock:       c.clock,
	}
	if write != nil {
		authCtx.Body = func(w io.Writer) error { return write(req, w) }
	}

	value, err := authenticator.Authorize(chal, authCtx)
	if err != nil {
		return nil, errors.Wrapf(err, "authenticating with %s", chal.Scheme)
	}

	next := req.clone()
	next.Header.Set(credHeader, value)
	return next, nil
}

// credentials resolves through the configured source, falling back to the
// target URI's userinfo for origin-server challenges.
func (c *Client) credentials(source auth.CredentialSource, u *url.URL, realm string, server bool) (auth.Credentials, bool) {
	if source != nil {
		if creds, ok := source.Lookup(u, realm); ok {
			return creds, true
		}
	}
	if server && u.User != nil {
		pass, _ := u.User.Password()
		return auth.Credentials{Username: u.User.Username(), Password: pass}, true
	}
	return auth.Credentials{}, false
}

func redirectTarget(cur *url.URL, h wire.Headers) (*url.URL, error) {
	loc, ok := h.Get("Location")
	if !ok {
		return nil, newError(TagUnexpectedServerResponse, "redirection without a Location header").
			with("request-uri", cur.String())
	}

	ref, err := url.Parse(loc)
	if err != nil {
		return nil, errors.Wrap(err, "parsing Location")
	}

	return cur.ResolveReference(ref), nil
}

// deliver hands the terminal response to the reader, then releases the
// connection per keep-alive, unless the reader deferred the release.
func (c *Client) deliver(cn *conn, cur *Request, res *Response, read BodyReader) (any, *url.URL, *Response, error) {
	res.conn = cn
	value, err := read(res)
	if !res.deferred {
		c.releaseConn(cn, res)
	}
	if err != nil {
		return nil, cur.URL, res, err
	}
	return value, cur.URL, res, nil
}

// releaseConn pools the connection when it may be reused, and closes it
// otherwise.
func (c *Client) releaseConn(cn *conn, res *Response) {
	if res.reusable() {
		c.pool.put(cn)
		return
	}
	c.pool.closeConn(cn)
}

// finishInterim drains the body of a response the loop is about to
// supersede, then releases the connection per keep-alive.
func (c *Client) finishInterim(cn *conn, res *Response) {
	if err := iolib.Drain(res.Body); err != nil {
		c.pool.closeConn(cn)
		return
	}
	c.releaseConn(cn, res)
}
