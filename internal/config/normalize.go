package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeProvision(); err != nil {
		return err
	}
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeProvision() error {
	var err error
	if strings.TrimSpace(c.Provision.BinDir) == "" {
		c.Provision.BinDir = defaultBinDir
	}
	if c.Provision.BinDir, err = expandPath(strings.TrimSpace(c.Provision.BinDir)); err != nil {
		return fmt.Errorf("provision.bin_dir: %w", err)
	}
	if payload := strings.TrimSpace(c.Provision.PayloadDir); payload != "" {
		if c.Provision.PayloadDir, err = expandPath(payload); err != nil {
			return fmt.Errorf("provision.payload_dir: %w", err)
		}
	} else {
		c.Provision.PayloadDir = ""
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	if value, ok := os.LookupEnv(envTargetDirOverride); ok && strings.TrimSpace(value) != "" {
		c.Download.TargetDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Download.TargetDir) == "" {
		c.Download.TargetDir = Default().Download.TargetDir
	}
	var err error
	if c.Download.TargetDir, err = expandPath(strings.TrimSpace(c.Download.TargetDir)); err != nil {
		return fmt.Errorf("download.target_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if dir := strings.TrimSpace(c.Logging.Dir); dir != "" {
		var err error
		if c.Logging.Dir, err = expandPath(dir); err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
	}
	return nil
}
