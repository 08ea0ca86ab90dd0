// Package client drives HTTP/1.1 requests to completion: connection reuse
// through a per-client pool, environment-driven proxying, redirect
// following, cookie-jar handling, and authentication challenges, with
// precise rules about when the underlying connection is reused or dropped.
package client

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/jbourlo/http-cient/iolib"
	"github.com/jbourlo/http-cient/payload"
	"github.com/pkg/errors"
)

// Client executes requests. Create one with [New]; the zero value is not
// usable. A Client owns its connection pool and must not be shared across
// goroutines; the jar it uses is safe to share.
type Client struct {
	opts Options

	pool   *connPool
	logger *slog.Logger
	clock  clock.Clock
}

func New(logger *slog.Logger, clk clock.Clock, opts Options) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Client{
		opts:   opts.withDefaults(),
		pool:   newConnPool(logger),
		logger: logger,
		clock:  clk,
	}
}

// With returns a client that shares this client's pool, logger, and clock,
// with mutate applied to a copy of its options. It scopes parameter
// overrides to the calls made through the returned client.
func (c *Client) With(mutate func(*Options)) *Client {
	opts := c.opts
	mutate(&opts)

	return &Client{
		opts:   opts.withDefaults(),
		pool:   c.pool,
		logger: c.logger,
		clock:  c.clock,
	}
}

// Get fetches rawurl and hands the response body to read. Responses outside
// 2xx become classified errors with the body drained.
func (c *Client) Get(ctx context.Context, rawurl string, read BodyReader) (any, *url.URL, *Response, error) {
	req, err := NewRequest("GET", rawurl)
	if err != nil {
		return nil, nil, nil, err
	}
	return c.DoWith(ctx, req, nil, c.checked(read))
}

// Post sends body to rawurl. The body may be a string, []byte, url.Values,
// []payload.Part (multipart when a part carries a file or stream), an
// io.Reader, or a func(io.Writer) error; see [payload.Of]. Responses outside
// 2xx become classified errors with the body drained.
func (c *Client) Post(ctx context.Context, rawurl string, body any, read BodyReader) (any, *url.URL, *Response, error) {
	req, err := NewRequest("POST", rawurl)
	if err != nil {
		return nil, nil, nil, err
	}

	write, err := c.attachBody(req, body)
	if err != nil {
		return nil, nil, nil, err
	}

	return c.DoWith(ctx, req, write, c.checked(read))
}

// Open performs the request and returns the response with its body still
// unread, plus a release closure that drains the rest of the body and
// returns the connection to the pool. The caller must call release exactly
// once. Responses outside 2xx become classified errors.
func (c *Client) Open(ctx context.Context, req *Request, write BodyWriter) (*Response, func() error, error) {
	var out *Response
	_, _, _, err := c.DoWith(ctx, req, write, func(res *Response) (any, error) {
		if err := statusError(res); err != nil {
			return nil, err.with("request-uri", req.URL.String())
		}
		res.deferred = true
		out = res
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	release := func() error {
		if err := iolib.Drain(out.Body); err != nil {
			c.pool.closeConn(out.conn)
			return errors.Wrap(err, "draining response body")
		}
		c.releaseConn(out.conn, out)
		return nil
	}

	return out, release, nil
}

// CloseConnection closes and evicts the pooled connection serving rawurl,
// reporting whether one existed.
func (c *Client) CloseConnection(rawurl string) (bool, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return false, errors.Wrap(err, "parsing uri")
	}
	return c.pool.closeAddr(addrOf(u)), nil
}

// CloseAll closes every pooled connection.
func (c *Client) CloseAll() {
	c.pool.closeAll()
}

// attachBody turns a body value into a BodyWriter and sets the framing
// headers it implies, leaving caller-set headers alone.
func (c *Client) attachBody(req *Request, body any) (BodyWriter, error) {
	b, err := payload.Of(body, c.clock)
	if err != nil {
		return nil, newError(TagFormDataError, "building request body").
			with("request-uri", req.URL.String()).
			wrap(err)
	}
	if b == nil {
		return nil, nil
	}

	if b.ContentType != "" && !req.Header.Has("Content-Type") {
		req.Header.Set("Content-Type", b.ContentType)
	}
	if b.Length != nil && !req.Header.Has("Content-Length") && !isChunked(req.Header) {
		req.Header.Set("Content-Length", strconv.FormatUint(*b.Length, 10))
	}

	return func(_ *Request, w io.Writer) error { return b.Write(w) }, nil
}

// checked wraps read so that non-2xx terminal responses surface as
// classified errors instead of reaching the reader. The body is drained
// first, keeping the connection reusable.
func (c *Client) checked(read BodyReader) BodyReader {
	return func(res *Response) (any, error) {
		if err := statusError(res); err != nil {
			if derr := iolib.Drain(res.Body); derr != nil {
				c.logger.Debug("draining error response failed", "error", derr.Error())
			}
			return nil, err
		}
		if read == nil {
			return nil, iolib.Drain(res.Body)
		}
		return read(res)
	}
}

// statusError classifies a terminal status: nil for 2xx, client-error for
// 4xx, server-error for 5xx, unexpected-server-response otherwise.
func statusError(res *Response) *Error {
	switch {
	case res.Status >= 200 && res.Status < 300:
		return nil
	case res.Status >= 400 && res.Status < 500:
		return newError(TagClientError, "remote returned a client error").withStatus(res.Status)
	case res.Status >= 500 && res.Status < 600:
		return newError(TagServerError, "remote returned a server error").withStatus(res.Status)
	default:
		return newError(TagUnexpectedServerResponse, "response is not a success").withStatus(res.Status)
	}
}
