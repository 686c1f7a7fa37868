// Package decoder normalizes payload framing. Upstream quantification files
// are inconsistently gzip-compressed depending on provider and version, so
// the parser downstream must never care.
package decoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// gzip magic bytes.
var gzipMagic = []byte{0x1f, 0x8b}

// FrameError reports a payload that announced gzip framing but could not be
// decompressed.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("corrupt compressed payload: %v", e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// IsGzipped reports whether the payload starts with the gzip signature.
func IsGzipped(payload []byte) bool {
	return bytes.HasPrefix(payload, gzipMagic)
}

// Open returns a reader over the decompressed content of payload. Plain
// payloads are passed through unchanged. The returned closer must be closed
// by the caller.
func Open(payload []byte) (io.ReadCloser, error) {
	if !IsGzipped(payload) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, &FrameError{Err: err}
	}
	return zr, nil
}
