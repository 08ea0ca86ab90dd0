package wire

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF specifies whether a single LF character should be
	// recognized as a valid line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// MaxFieldLineLength sets the limit of field line length on headers.
	MaxFieldLineLength uint

	// MaxStatusLineLength sets the limit of status line length.
	MaxStatusLineLength uint
}

// ResponseHead is a parsed status line plus headers. The body remains on the
// reader the decoder was constructed with.
type ResponseHead struct {
	StatusLine
	Headers Headers
}

var (
	// ErrNoResponse reports that the stream ended before a single byte of the
	// status line arrived: the server closed the connection pre-reply.
	ErrNoResponse = errors.New("connection closed before response")

	errLineTooLong       = errors.New("line length exceeds limit")
	ErrMissingCRBeforeLF = errors.New("missing CR before LF")

	ErrFieldLineTooLong   = errors.New("field line length exceeds limit")
	ErrMalformedFieldLine = errors.New("field line is malformed")
	ErrStatusLineTooLong  = errors.New("status line length exceeds limit")
	ErrMalformedStatusLine = errors.New("status line is malformed")
)

// ResponseDecoder parses a response head from a connection's buffered reader.
// It borrows the reader: body bytes stay buffered on it for the caller.
type ResponseDecoder struct {
	br   *bufio.Reader
	opts DecodeOptions
}

func NewResponseDecoder(br *bufio.Reader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{br: br, opts: opts}
}

// Decode parses the status line and headers into head.
func (rd *ResponseDecoder) Decode(head *ResponseHead) error {
	if err := rd.decodeStatusLine(&head.StatusLine); err != nil {
		return err
	}

	if err := rd.decodeHeaders(&head.Headers); err != nil {
		return errors.Wrap(err, "parsing headers")
	}

	return nil
}

func (rd *ResponseDecoder) decodeStatusLine(statLine *StatusLine) error {
	var line []byte
	first := true
	for {
		b, err := rd.readLine(rd.opts.MaxStatusLineLength, first)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return ErrStatusLineTooLong
			}
			return errors.Wrap(err, "reading status line")
		}
		first = false

		// An empty line can be received before the message.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
		if len(b) > 0 {
			line = b
			break
		}
	}

	parsed, err := parseStatusLine(line)
	if err != nil {
		return ErrMalformedStatusLine
	}

	*statLine = parsed

	return nil
}

func (rd *ResponseDecoder) decodeHeaders(headers *Headers) error {
	fields := make([]Field, 0)
	for {
		fieldLine, err := rd.readLine(rd.opts.MaxFieldLineLength, false)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return ErrFieldLineTooLong
			}
			return errors.Wrap(err, "reading line")
		}

		if len(fieldLine) == 0 {
			// An empty line. No more headers.
			break
		}

		field, err := ParseField(fieldLine)
		if err != nil {
			return ErrMalformedFieldLine
		}

		fields = append(fields, field)
	}

	*headers = HeadersFrom(fields)

	return nil
}

// readLine reads a single line without its terminator. When atStart is set
// and the stream errors before yielding any byte, the error is reported as
// [ErrNoResponse] so the caller can distinguish a pre-reply disconnection
// from a truncated message.
func (rd *ResponseDecoder) readLine(limit uint, atStart bool) ([]byte, error) {
	b, err := rd.br.ReadBytes(LF)
	if err != nil {
		if atStart && len(b) == 0 {
			return nil, errors.Wrap(ErrNoResponse, err.Error())
		}
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if limit > 0 && uint(len(b)) > limit {
		return nil, errLineTooLong
	}

	b = b[:len(b)-1] // Remove LF.

	if !rd.opts.AllowSoleLF {
		if len(b) == 0 || b[len(b)-1] != CR {
			return nil, ErrMissingCRBeforeLF
		}
		b = b[:len(b)-1] // Remove CR.
	} else if len(b) > 0 && b[len(b)-1] == CR {
		b = b[:len(b)-1]
	}

	return b, nil
}

func parseStatusLine(line []byte) (StatusLine, error) {
	parts := bytes.SplitN(line, []byte{SP}, 3)
	if len(parts) < 2 {
		return StatusLine{}, errors.New("status line is malformed")
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return StatusLine{}, errors.Wrap(err, "parsing version")
	}

	statusCodeStr := string(parts[1])
	statusCode, err := strconv.ParseUint(statusCodeStr, 10, 64)
	if err != nil || len(statusCodeStr) != 3 {
		return StatusLine{}, errors.Errorf("status code is malformed: %q", statusCodeStr)
	}

	// The reason phrase is optional.
	reasonPhrase := ""
	if len(parts) == 3 {
		reasonPhrase = string(parts[2])
	}

	return StatusLine{Version: ver, StatusCode: int(statusCode), ReasonPhrase: reasonPhrase}, nil
}
