package wire

import (
	"bufio"
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// RequestEncoder serializes a request head onto a connection's buffered
// writer. The body, if any, is written by the caller to the same writer after
// Encode returns.
type RequestEncoder struct {
	bw *bufio.Writer
}

func NewRequestEncoder(bw *bufio.Writer) *RequestEncoder {
	return &RequestEncoder{bw: bw}
}

// Encode writes the request line, the header fields, and the terminating
// empty line, then flushes the head so small requests leave promptly even
// when no body follows.
func (re *RequestEncoder) Encode(line RequestLine, headers Headers) error {
	if err := re.encodeRequestLine(line); err != nil {
		return errors.Wrap(err, "encoding request line")
	}

	for _, field := range headers.Fields() {
		if !httpguts.ValidHeaderFieldName(field.Name) {
			return errors.Errorf("invalid header field name: %q", field.Name)
		}
		if !httpguts.ValidHeaderFieldValue(field.Value) {
			return errors.Errorf("invalid value for header field %s", field.Name)
		}
		if err := re.writeLine(field.Text()); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// An empty line ends the head.
	if err := re.writeLine(nil); err != nil {
		return errors.Wrap(err, "writing head terminator")
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing request head")
	}

	return nil
}

func (re *RequestEncoder) encodeRequestLine(line RequestLine) error {
	if !IsValidToken(line.Method) {
		return errors.Errorf("method is not a valid token: %q", line.Method)
	}
	if line.Target == "" {
		return errors.New("request target should not be empty")
	}

	buf := bytes.NewBuffer(nil)
	buf.WriteString(line.Method)
	buf.WriteByte(SP)
	buf.WriteString(line.Target)
	buf.WriteByte(SP)
	buf.Write(line.Version.Text())

	return re.writeLine(buf.Bytes())
}

func (re *RequestEncoder) writeLine(line []byte) error {
	if _, err := re.bw.Write(line); err != nil {
		return errors.Wrap(err, "writing line")
	}
	if _, err := re.bw.Write(CRLF); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}
	return nil
}
