package process

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
)

// newByteReader wraps a caller-supplied stdin payload for exec.Cmd.Stdin.
func newByteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// asExitError extracts an *exec.ExitError from err, mirroring
// errors.As without requiring every call site to import both errors
// and os/exec.
func asExitError(err error, target **exec.ExitError) bool {
	return errors.As(err, target)
}
