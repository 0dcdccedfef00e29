package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/serialdisplay/internal/errors"
	"gopkg.in/yaml.v3"
)

const fileHeader = `# serialdisplay configuration
# Streams CPU and memory usage to a serial display device.
# Changes made from the menu at runtime are not saved here.
`

// Write marshals cfg to path as YAML. It refuses to overwrite an existing
// file unless force is set.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrConfig,
				"Config file already exists: "+path,
				"Use --force to overwrite it")
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to encode config",
			"This is a bug - please report it")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot create config directory "+dir,
				"Check directory permissions")
		}
	}

	if err := os.WriteFile(path, append([]byte(fileHeader), data...), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file "+path,
			"Check file permissions")
	}

	return nil
}
