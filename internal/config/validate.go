package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateMakeMKV(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.LosslessScore <= 0 || c.Scoring.LossyScore <= 0 {
		return errors.New("scoring tiers must be positive")
	}
	if c.Scoring.LossyScore >= c.Scoring.LosslessScore {
		return errors.New("scoring.lossy_score must be below scoring.lossless_score")
	}
	return nil
}

func (c *Config) validateMakeMKV() error {
	if c.MakeMKV.MinTitleSeconds < 0 {
		return errors.New("makemkv.min_title_seconds must not be negative")
	}
	if c.MakeMKV.RipTimeout < 0 {
		return errors.New("makemkv.rip_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}
