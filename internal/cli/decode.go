package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/rileyhilliard/serialdisplay/internal/frame"
)

// decodeCommand prints one line per frame read from r. Frames decoded before
// a bad byte are still printed.
func decodeCommand(w io.Writer, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrFrame,
			"Failed to read the capture",
			"Check the file is readable")
	}

	frames, decodeErr := frame.Decode(data)
	for _, f := range frames {
		fmt.Fprintln(w, f.String())
	}
	if decodeErr != nil {
		return errors.WrapWithCode(decodeErr, errors.ErrFrame,
			fmt.Sprintf("Stopped after %d frames", len(frames)),
			"Check the capture starts on a frame boundary")
	}
	if len(frames) == 0 {
		fmt.Fprintln(w, "no frames")
	}
	return nil
}

func decodeOpenError(path string, err error) error {
	return errors.WrapWithCode(err, errors.ErrFrame,
		"Can't open capture "+path,
		"Check the path, or pass - to read from stdin")
}
