// Package output opens the sink a captured frame is written to.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/cjeanneret/ovcap/internal/debug"
)

// Stdout is the path selecting standard output.
const Stdout = "-"

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Open returns an unbuffered writer for path. "-" or "" selects stdout,
// which Close leaves open. Anything else is a serial/tty device or a
// regular file, created if missing.
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == Stdout {
		debug.Verbose("Output: stdout")
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", path, err)
	}
	debug.Verbose("Output: %s", path)
	return f, nil
}
