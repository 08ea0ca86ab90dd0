package client

import (
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"syscall"

	"github.com/jbourlo/http-cient/transport"
	"github.com/jbourlo/http-cient/wire"
	"github.com/pkg/errors"
)

// Tag classifies a client failure.
type Tag string

const (
	TagMissingTLSProvider       Tag = "missing-tls-provider"
	TagUnsupportedURIScheme     Tag = "unsupported-uri-scheme"
	TagPrematureDisconnection   Tag = "premature-disconnection"
	TagRedirectDepthExceeded    Tag = "redirect-depth-exceeded"
	TagUnknownAuthType          Tag = "unknown-authtype"
	TagClientError              Tag = "client-error"
	TagServerError              Tag = "server-error"
	TagUnexpectedServerResponse Tag = "unexpected-server-response"
	TagFormDataError            Tag = "form-data-error"
)

// Error is a classified client failure carrying key/value context such as
// the request URI, the proxy in use, or the challenge scheme.
type Error struct {
	Tag Tag
	// Status is the response status for status-classified failures, 0
	// otherwise.
	Status  int
	Context map[string]string

	msg   string
	cause error
}

func newError(tag Tag, msg string) *Error {
	return &Error{Tag: tag, Context: make(map[string]string), msg: msg}
}

func (e *Error) with(key, value string) *Error {
	e.Context[key] = value
	return e
}

func (e *Error) withStatus(status int) *Error {
	e.Status = status
	return e
}

func (e *Error) wrap(cause error) *Error {
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "%s: %s", e.Tag, e.msg)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+e.Context[k])
		}
		fmt.Fprintf(b, " (%s)", strings.Join(pairs, ", "))
	}

	if e.cause != nil {
		fmt.Fprintf(b, ": %s", e.cause)
	}

	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// TagOf extracts the classification tag from err, if it carries one.
func TagOf(err error) (Tag, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Tag, true
	}
	return "", false
}

// isTransportErr reports whether err came from the byte stream rather than
// from protocol or caller logic. Transport failures are the retryable kind.
func isTransportErr(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, transport.ErrConnClosed) ||
		errors.Is(err, wire.ErrNoResponse)
}
