package payload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Part is one field of a multipart body. Exactly one of Value, File, or
// Stream supplies the payload; Header entries override the generated part
// headers.
type Part struct {
	Name  string
	Value string

	// File is a path streamed from disk. The file is opened inside Write and
	// closed before Write returns, on success and failure alike.
	File string
	// Filename overrides the name sent in Content-Disposition; it defaults
	// to the base name of File.
	Filename string
	// Stream is an opaque payload of unknown size. A body containing one
	// gets no precomputed content length and cannot be replayed.
	Stream io.Reader

	Header map[string]string
}

func hasPayloadParts(parts []Part) bool {
	for _, p := range parts {
		if p.File != "" || p.Stream != nil {
			return true
		}
	}
	return false
}

// Multipart builds a multipart/form-data body. Literal and file sizes are
// summed into a precomputed content length; a stream part makes the length
// unknown.
func Multipart(parts []Part, clk clock.Clock) (*Body, error) {
	boundary, err := makeBoundary(clk)
	if err != nil {
		return nil, err
	}

	heads := make([][]byte, len(parts))
	lengths := make([]uint64, len(parts))
	streaming := false

	for idx, p := range parts {
		if p.Name == "" {
			return nil, errors.New("multipart field without a name")
		}

		heads[idx] = partHead(boundary, p)

		switch {
		case p.File != "":
			info, err := os.Stat(p.File)
			if err != nil {
				return nil, errors.Wrapf(err, "sizing file for field %q", p.Name)
			}
			lengths[idx] = uint64(info.Size())
		case p.Stream != nil:
			streaming = true
		default:
			lengths[idx] = uint64(len(p.Value))
		}
	}

	terminator := []byte("--" + boundary + "--\r\n")

	var length *uint64
	if !streaming {
		total := uint64(len(terminator))
		for idx := range parts {
			total += uint64(len(heads[idx])) + lengths[idx] + 2 // trailing CRLF
		}
		length = &total
	}

	consumed := false
	write := func(w io.Writer) error {
		for idx, p := range parts {
			if _, err := w.Write(heads[idx]); err != nil {
				return errors.Wrapf(err, "writing head of field %q", p.Name)
			}
			if err := writePartPayload(w, p, &consumed); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\r\n"); err != nil {
				return errors.Wrapf(err, "terminating field %q", p.Name)
			}
		}

		_, err := w.Write(terminator)
		return errors.Wrap(err, "writing multipart terminator")
	}

	return &Body{
		ContentType: "multipart/form-data; boundary=" + boundary,
		Length:      length,
		Write:       write,
	}, nil
}

func writePartPayload(w io.Writer, p Part, consumed *bool) error {
	switch {
	case p.File != "":
		f, err := os.Open(p.File)
		if err != nil {
			return errors.Wrapf(err, "opening file for field %q", p.Name)
		}
		defer f.Close()

		if _, err := io.Copy(w, f); err != nil {
			return errors.Wrapf(err, "streaming file for field %q", p.Name)
		}
		return nil
	case p.Stream != nil:
		if *consumed {
			return ErrConsumed
		}
		*consumed = true
		_, err := io.Copy(w, p.Stream)
		return errors.Wrapf(err, "streaming field %q", p.Name)
	default:
		_, err := io.WriteString(w, p.Value)
		return errors.Wrapf(err, "writing field %q", p.Name)
	}
}

// partHead renders the dash-boundary and headers of one part. User headers
// override the generated defaults; extra ones are appended in sorted order.
func partHead(boundary string, p Part) []byte {
	defaults := []string{"Content-Disposition"}
	values := map[string]string{
		"Content-Disposition": contentDisposition(p),
	}
	if p.File != "" || p.Stream != nil {
		defaults = append(defaults, "Content-Type")
		values["Content-Type"] = "application/octet-stream"
	}

	extra := make([]string, 0, len(p.Header))
	for name, value := range p.Header {
		if _, ok := values[name]; !ok {
			extra = append(extra, name)
		}
		values[name] = value
	}
	sort.Strings(extra)

	b := new(strings.Builder)
	fmt.Fprintf(b, "--%s\r\n", boundary)
	for _, name := range append(defaults, extra...) {
		fmt.Fprintf(b, "%s: %s\r\n", name, values[name])
	}
	b.WriteString("\r\n")

	return []byte(b.String())
}

func contentDisposition(p Part) string {
	d := fmt.Sprintf("form-data; name=%q", p.Name)

	filename := p.Filename
	if filename == "" && p.File != "" {
		filename = filepath.Base(p.File)
	}
	if filename != "" {
		d += fmt.Sprintf("; filename=%q", filename)
	}

	return d
}

func makeBoundary(clk clock.Clock) (string, error) {
	unique := make([]byte, 8)
	if _, err := rand.Read(unique); err != nil {
		return "", errors.Wrap(err, "generating boundary")
	}

	return fmt.Sprintf(
		"----------------Multipart-=_%s=_=%d=-=%d",
		hex.EncodeToString(unique), os.Getpid(), clk.Now().Unix(),
	), nil
}
