package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvision(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvision() error {
	if c.Provision.BinDir == "" {
		return errors.New("provision.bin_dir must be set")
	}
	if filepath.Clean(c.Provision.BinDir) == filepath.Clean(c.Download.TargetDir) {
		return errors.New("provision.bin_dir and download.target_dir must differ")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
