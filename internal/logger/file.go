package logger

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultMaxSizeMB is the rotation threshold used when none is configured.
const DefaultMaxSizeMB = 5

// FileOptions controls where log output goes when redirected to a file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// RedirectToFile sends all standard log output to a size-rotated file.
// The returned closer restores stderr output and closes the file.
// An empty path leaves output untouched and returns a no-op closer.
func RedirectToFile(opts FileOptions) io.Closer {
	if opts.Path == "" {
		return nopCloser{}
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}

	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	log.SetOutput(w)

	return closerFunc(func() error {
		log.SetOutput(os.Stderr)
		return w.Close()
	})
}

// Discard silences standard log output until the returned closer is called.
// The menu uses it when no log file is configured so log lines don't tear the TUI.
func Discard() io.Closer {
	log.SetOutput(io.Discard)
	return closerFunc(func() error {
		log.SetOutput(os.Stderr)
		return nil
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
