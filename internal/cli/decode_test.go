package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		want     string
		wantCode string
	}{
		{
			name:  "control then telemetry",
			input: []byte{0x64, 0xFA, 0x00, 0x00, 0x00, 0x65, 42, 77},
			want:  "set-rate 250ms\ntelemetry cpu=42% mem=77%\n",
		},
		{
			name:  "empty capture",
			input: nil,
			want:  "no frames\n",
		},
		{
			name:     "bad opcode after good frames",
			input:    []byte{0x65, 1, 2, 0x10},
			want:     "telemetry cpu=1% mem=2%\n",
			wantCode: errors.ErrFrame,
		},
		{
			name:     "truncated control frame",
			input:    []byte{0x64, 0xF4, 0x01},
			want:     "",
			wantCode: errors.ErrFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := decodeCommand(&out, bytes.NewReader(tt.input))
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestDecodeOpenError(t *testing.T) {
	err := decodeOpenError("capture.bin", assert.AnError)
	assert.True(t, errors.IsCode(err, errors.ErrFrame))
	assert.Contains(t, err.Error(), "capture.bin")
}
