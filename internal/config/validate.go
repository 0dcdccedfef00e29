package config

import (
	"fmt"
	"math"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
)

// MaxRefreshRate is the largest interval the control frame can carry.
const MaxRefreshRate = math.MaxInt32

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but serialdisplay only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade serialdisplay or lower the version field.")
	}

	if cfg.BaudRate <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("baud_rate %d isn't valid", cfg.BaudRate),
			fmt.Sprintf("Use the rate the device sketch was built with, usually %d.", DefaultBaudRate))
	}

	if err := ValidateRefreshRate(cfg.RefreshRate); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check 'refresh_rate' in your .serialdisplay.yaml.")
	}

	if err := validateRefreshRates(cfg.RefreshRates); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check 'refresh_rates' in your .serialdisplay.yaml.")
	}

	if cfg.Log.MaxSizeMB < 0 {
		return errors.New(errors.ErrConfig,
			"log.max_size_mb can't be negative",
			"Leave it unset for the default or use a positive size.")
	}

	return nil
}

// ValidateRefreshRate checks that ms can be sent to the device as a positive int32.
func ValidateRefreshRate(ms int) error {
	if ms <= 0 {
		return fmt.Errorf("refresh rate %dms isn't valid - it must be a positive number of milliseconds", ms)
	}
	if ms > MaxRefreshRate {
		return fmt.Errorf("refresh rate %dms is too large - the device accepts at most %dms", ms, MaxRefreshRate)
	}
	return nil
}

// validateRefreshRates checks the menu choices.
func validateRefreshRates(rates []int) error {
	if len(rates) == 0 {
		return fmt.Errorf("refresh_rates is empty - the menu needs at least one choice")
	}
	seen := make(map[int]bool, len(rates))
	for _, r := range rates {
		if err := ValidateRefreshRate(r); err != nil {
			return err
		}
		if seen[r] {
			return fmt.Errorf("refresh_rates lists %dms twice", r)
		}
		seen[r] = true
	}
	return nil
}
