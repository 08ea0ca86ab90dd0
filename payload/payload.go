// Package payload builds request bodies: literals, form-urlencoded data,
// multipart uploads with precomputed lengths, and opaque streams. A Body's
// Write function is what the client's execution loop invokes once per
// attempt, so every shape that can be replayed is replayable.
package payload

import (
	"io"
	"net/url"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Body describes a request payload.
type Body struct {
	// ContentType is set on the request unless the caller already did.
	ContentType string
	// Length is the exact body size when known; nil otherwise.
	Length *uint64
	// Write streams the payload. Replayable shapes may be written once per
	// attempt; one-shot streams fail on the second call.
	Write func(w io.Writer) error
}

// ErrConsumed reports a one-shot stream body being written a second time,
// which happens when a retry or redirect reissues the request.
var ErrConsumed = errors.New("stream body already consumed")

// Of dispatches on the shape of v:
//
//   - nil: no body
//   - string, []byte: literal body
//   - url.Values: form-urlencoded
//   - []Part: multipart when any part carries a file or stream, otherwise
//     form-urlencoded from the scalar parts
//   - io.Reader: one-shot stream of unknown length
//   - func(io.Writer) error: caller-controlled streaming
func Of(v any, clk clock.Clock) (*Body, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case string:
		return Literal([]byte(b)), nil
	case []byte:
		return Literal(b), nil
	case url.Values:
		return Form(b), nil
	case []Part:
		if hasPayloadParts(b) {
			return Multipart(b, clk)
		}
		return FormParts(b)
	case io.Reader:
		return Stream(b), nil
	case func(io.Writer) error:
		return &Body{Write: b}, nil
	default:
		return nil, errors.Errorf("unsupported body type: %T", v)
	}
}

// Literal is a fixed byte body.
func Literal(data []byte) *Body {
	length := uint64(len(data))
	return &Body{
		Length: &length,
		Write: func(w io.Writer) error {
			_, err := w.Write(data)
			return errors.Wrap(err, "writing literal body")
		},
	}
}

// Stream wraps a one-shot reader. The body cannot be replayed, so retries
// and redirects of the carrying request fail with [ErrConsumed].
func Stream(r io.Reader) *Body {
	consumed := false
	return &Body{
		Write: func(w io.Writer) error {
			if consumed {
				return ErrConsumed
			}
			consumed = true
			_, err := io.Copy(w, r)
			return errors.Wrap(err, "streaming body")
		},
	}
}
