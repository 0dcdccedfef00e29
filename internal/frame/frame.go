// Package frame encodes the host-to-device wire protocol.
//
// The stream is a sequence of fixed-length frames with no delimiter or
// checksum. The first byte of each frame is an opcode that also fixes its
// length:
//
//	0x64  set refresh interval  [0x64, int32 little-endian milliseconds]  5 bytes
//	0x65  telemetry sample      [0x65, cpu percent, memory percent]       3 bytes
//
// The device firmware depends on these exact values and byte order.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
)

// Opcode selects the meaning and length of a frame.
type Opcode byte

const (
	OpSetRate   Opcode = 0x64
	OpTelemetry Opcode = 0x65
)

// Frame lengths including the opcode byte.
const (
	ControlLen   = 5
	TelemetryLen = 3
)

// String returns a short label for logs and the decode command.
func (o Opcode) String() string {
	switch o {
	case OpSetRate:
		return "set-rate"
	case OpTelemetry:
		return "telemetry"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(o))
	}
}

// Len returns the total frame length for o, or 0 for an unknown opcode.
func (o Opcode) Len() int {
	switch o {
	case OpSetRate:
		return ControlLen
	case OpTelemetry:
		return TelemetryLen
	default:
		return 0
	}
}

// EncodeControl returns the frame telling the device its new refresh interval.
// The value is written as-is; sign is not special-cased.
func EncodeControl(rateMS int32) []byte {
	b := make([]byte, ControlLen)
	b[0] = byte(OpSetRate)
	binary.LittleEndian.PutUint32(b[1:], uint32(rateMS))
	return b
}

// EncodeTelemetry returns a telemetry frame. Values above 100 are passed through.
func EncodeTelemetry(cpu, mem uint8) []byte {
	return []byte{byte(OpTelemetry), cpu, mem}
}

// Frame is a decoded frame. Only the fields for its opcode are meaningful.
type Frame struct {
	Op     Opcode
	RateMS int32
	CPU    uint8
	Memory uint8
}

// Bytes re-encodes the frame.
func (f Frame) Bytes() []byte {
	if f.Op == OpSetRate {
		return EncodeControl(f.RateMS)
	}
	return EncodeTelemetry(f.CPU, f.Memory)
}

// String renders the frame for humans.
func (f Frame) String() string {
	switch f.Op {
	case OpSetRate:
		return fmt.Sprintf("%s %dms", f.Op, f.RateMS)
	case OpTelemetry:
		return fmt.Sprintf("%s cpu=%d%% mem=%d%%", f.Op, f.CPU, f.Memory)
	default:
		return f.Op.String()
	}
}

// DecodeOne decodes the frame at the start of b and returns it with the
// number of bytes consumed.
func DecodeOne(b []byte) (Frame, int, error) {
	if len(b) == 0 {
		return Frame{}, 0, errors.New(errors.ErrFrame, "Empty input", "")
	}

	op := Opcode(b[0])
	n := op.Len()
	if n == 0 {
		return Frame{}, 0, errors.New(errors.ErrFrame,
			fmt.Sprintf("Unknown opcode 0x%02x", b[0]),
			"The stream may be misaligned or from a different protocol")
	}
	if len(b) < n {
		return Frame{}, 0, errors.New(errors.ErrFrame,
			fmt.Sprintf("Truncated %s frame: have %d of %d bytes", op, len(b), n),
			"The capture may have been cut off mid-frame")
	}

	f := Frame{Op: op}
	switch op {
	case OpSetRate:
		f.RateMS = int32(binary.LittleEndian.Uint32(b[1:ControlLen]))
	case OpTelemetry:
		f.CPU = b[1]
		f.Memory = b[2]
	}
	return f, n, nil
}

// Decode splits a byte stream into frames. On error it returns the frames
// decoded so far together with the offset of the bad byte.
func Decode(b []byte) ([]Frame, error) {
	var frames []Frame
	for off := 0; off < len(b); {
		f, n, err := DecodeOne(b[off:])
		if err != nil {
			return frames, fmt.Errorf("offset %d: %w", off, err)
		}
		frames = append(frames, f)
		off += n
	}
	return frames, nil
}
