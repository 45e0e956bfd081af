package archive

import "bytes"

// newBytesReader wraps an in-memory tar member body for io.Copy.
func newBytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
