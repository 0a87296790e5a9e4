package core

// streaming.go provides readers applied to uploaded files before parsing.
//
//   - NewDecodingReader: strips a UTF-8 or UTF-16 byte order mark (decoding
//     UTF-16 to UTF-8) and replaces invalid UTF-8 with U+FFFD
//   - CountingReader: tracks raw bytes received, reported on import progress
//
// Use WrapForStreaming to apply both in the correct order.

import (
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewDecodingReader wraps r so that the returned stream is valid UTF-8 without a BOM.
// Files without a BOM are treated as UTF-8.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader wraps an io.Reader to track bytes read.
// BytesRead is safe to call while another goroutine reads.
type CountingReader struct {
	reader io.Reader
	read   atomic.Int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (r *CountingReader) BytesRead() int64 {
	return r.read.Load()
}

// WrapForStreaming counts raw bytes and decodes them for parsing.
// Counting sits beneath decoding, so a byte order mark is counted too.
func WrapForStreaming(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	return NewDecodingReader(counter), counter
}
