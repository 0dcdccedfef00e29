package config

import (
	"testing"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:        "future version",
			mutate:      func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			wantErr:     true,
			errContains: "from the future",
		},
		{
			name:        "zero baud rate",
			mutate:      func(c *Config) { c.BaudRate = 0 },
			wantErr:     true,
			errContains: "baud_rate",
		},
		{
			name:        "zero refresh rate",
			mutate:      func(c *Config) { c.RefreshRate = 0 },
			wantErr:     true,
			errContains: "positive",
		},
		{
			name:        "negative refresh rate",
			mutate:      func(c *Config) { c.RefreshRate = -250 },
			wantErr:     true,
			errContains: "positive",
		},
		{
			name:        "empty menu choices",
			mutate:      func(c *Config) { c.RefreshRates = nil },
			wantErr:     true,
			errContains: "at least one",
		},
		{
			name:        "duplicate menu choice",
			mutate:      func(c *Config) { c.RefreshRates = []int{100, 100} },
			wantErr:     true,
			errContains: "twice",
		},
		{
			name:        "non-positive menu choice",
			mutate:      func(c *Config) { c.RefreshRates = []int{100, 0} },
			wantErr:     true,
			errContains: "positive",
		},
		{
			name:    "refresh rate outside menu is allowed",
			mutate:  func(c *Config) { c.RefreshRate = 333 },
			wantErr: false,
		},
		{
			name:        "negative log size",
			mutate:      func(c *Config) { c.Log.MaxSizeMB = -1 },
			wantErr:     true,
			errContains: "max_size_mb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.NoError(t, Validate(nil))
}

func TestValidateRefreshRate(t *testing.T) {
	assert.NoError(t, ValidateRefreshRate(1))
	assert.NoError(t, ValidateRefreshRate(MaxRefreshRate))
	assert.Error(t, ValidateRefreshRate(0))
	assert.Error(t, ValidateRefreshRate(MaxRefreshRate+1))
}
