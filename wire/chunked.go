package wire

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// ChunkedWriter frames writes as HTTP/1.1 chunks. Close writes the last
// chunk; trailers are not supported.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
type ChunkedWriter struct {
	w      io.Writer
	closed bool
}

func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

func (cw *ChunkedWriter) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, errors.New("write on closed chunked writer")
	}
	if len(p) == 0 {
		// A zero-length chunk would terminate the body.
		return 0, nil
	}

	head := strconv.FormatUint(uint64(len(p)), 16)
	if _, err := io.WriteString(cw.w, head); err != nil {
		return 0, errors.Wrap(err, "writing chunk size")
	}
	if _, err := cw.w.Write(CRLF); err != nil {
		return 0, errors.Wrap(err, "writing chunk size terminator")
	}
	n, err := cw.w.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "writing chunk data")
	}
	if _, err := cw.w.Write(CRLF); err != nil {
		return n, errors.Wrap(err, "writing chunk terminator")
	}
	return n, nil
}

// Close writes the last chunk. The writer is unusable afterwards.
func (cw *ChunkedWriter) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	if _, err := io.WriteString(cw.w, "0"); err != nil {
		return errors.Wrap(err, "writing last chunk")
	}
	if _, err := cw.w.Write(CRLF); err != nil {
		return errors.Wrap(err, "writing last chunk terminator")
	}
	if _, err := cw.w.Write(CRLF); err != nil {
		return errors.Wrap(err, "writing trailer terminator")
	}
	return nil
}
