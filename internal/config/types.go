package config

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Defaults for the display firmware this tool targets.
const (
	DefaultBaudRate    = 9600
	DefaultRefreshRate = 250
)

// DefaultRefreshRates are the menu choices, in milliseconds.
var DefaultRefreshRates = []int{100, 250, 500, 750, 1000}

// Config represents the complete .serialdisplay.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Port is the serial port to stream to. Empty means pick one at startup:
	// the only port present, if there is exactly one.
	Port string `yaml:"port" mapstructure:"port"`

	// BaudRate must match the sketch running on the device.
	BaudRate int `yaml:"baud_rate" mapstructure:"baud_rate"`

	// RefreshRate is the initial milliseconds between samples.
	RefreshRate int `yaml:"refresh_rate" mapstructure:"refresh_rate"`

	// RefreshRates are the choices offered in the menu.
	RefreshRates []int `yaml:"refresh_rates" mapstructure:"refresh_rates"`

	// AutoStart starts streaming at launch when a port is available.
	AutoStart bool `yaml:"auto_start" mapstructure:"auto_start"`

	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig controls where diagnostic output is written.
type LogConfig struct {
	// File receives log output instead of stderr. Rotated by size.
	File string `yaml:"file,omitempty" mapstructure:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `yaml:"max_size_mb,omitempty" mapstructure:"max_size_mb"`
}

// MetricsConfig controls the optional Prometheus endpoint of the stream command.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9101". Empty disables the endpoint.
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	rates := make([]int, len(DefaultRefreshRates))
	copy(rates, DefaultRefreshRates)

	return &Config{
		Version:      CurrentConfigVersion,
		BaudRate:     DefaultBaudRate,
		RefreshRate:  DefaultRefreshRate,
		RefreshRates: rates,
		AutoStart:    true,
	}
}
