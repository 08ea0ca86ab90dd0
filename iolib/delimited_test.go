package iolib

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbourlo/http-cient/lib/pointer"
)

func TestDelimitNoLength(t *testing.T) {
	r := strings.NewReader("abc")
	assert.Equal(t, io.Reader(r), Delimit(r, nil))
}

func TestDelimitedReader(t *testing.T) {
	testcases := []struct {
		desc   string
		input  string
		length uint64
		read   func(r io.Reader) (string, error)
	}{
		{
			desc:   "bulk read",
			input:  "hello world",
			length: 5,
			read: func(r io.Reader) (string, error) {
				b, err := io.ReadAll(r)
				return string(b), err
			},
		},
		{
			desc:   "byte at a time",
			input:  "hello world",
			length: 5,
			read: func(r io.Reader) (string, error) {
				buf := make([]byte, 1)
				out := new(bytes.Buffer)
				for {
					n, err := r.Read(buf)
					out.Write(buf[:n])
					if err == io.EOF {
						return out.String(), nil
					}
					if err != nil {
						return out.String(), err
					}
				}
			},
		},
		{
			desc:   "line reads through bufio",
			input:  "hel\nlo world",
			length: 5,
			read: func(r io.Reader) (string, error) {
				br := bufio.NewReader(r)
				out := new(bytes.Buffer)
				for {
					line, err := br.ReadString('\n')
					out.WriteString(line)
					if err == io.EOF {
						return out.String(), nil
					}
					if err != nil {
						return out.String(), err
					}
				}
			},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			r := Delimit(strings.NewReader(tc.input), pointer.To(tc.length))

			got, err := tc.read(r)
			require.NoError(t, err)
			assert.Equal(t, tc.input[:tc.length], got)
		})
	}
}

func TestDelimitedReaderShortStream(t *testing.T) {
	r := Delimit(strings.NewReader("ab"), pointer.To(uint64(5)))

	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDrained(t *testing.T) {
	r := Delimit(strings.NewReader("abcdef"), pointer.To(uint64(3)))
	assert.False(t, Drained(r))

	require.NoError(t, Drain(r))
	assert.True(t, Drained(r))

	// A reader without a known length never reports drained.
	assert.False(t, Drained(strings.NewReader("")))
}

func TestDrain(t *testing.T) {
	underlying := strings.NewReader("abcdef")
	r := Delimit(underlying, pointer.To(uint64(4)))

	require.NoError(t, Drain(r))

	// Only the delimited bytes are consumed.
	rest, err := io.ReadAll(underlying)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(rest))

	assert.NoError(t, Drain(nil))
}
