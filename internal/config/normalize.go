package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMakeMKV()
	c.normalizeMetadata()
	c.normalizeCoverArt()
	c.normalizeWorkspace()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaultLibraryDir
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMakeMKV() {
	if strings.TrimSpace(c.MakeMKV.OpticalDrive) == "" {
		c.MakeMKV.OpticalDrive = defaultOpticalDrive
	}
	if c.MakeMKV.MinTitleSeconds <= 0 {
		c.MakeMKV.MinTitleSeconds = defaultMinTitleSeconds
	}
	if c.MakeMKV.LicenseCheckInterval <= 0 {
		c.MakeMKV.LicenseCheckInterval = defaultLicenseCheckHours
	}
}

func (c *Config) normalizeMetadata() {
	c.Metadata.BaseURL = strings.TrimRight(strings.TrimSpace(c.Metadata.BaseURL), "/")
	if c.Metadata.BaseURL == "" {
		c.Metadata.BaseURL = defaultMetadataBaseURL
	}
	if c.Metadata.MaxReleaseGroups <= 0 {
		c.Metadata.MaxReleaseGroups = defaultMaxReleaseGroups
	}
}

func (c *Config) normalizeCoverArt() {
	c.CoverArt.ITunesBaseURL = strings.TrimRight(strings.TrimSpace(c.CoverArt.ITunesBaseURL), "/")
	if c.CoverArt.ITunesBaseURL == "" {
		c.CoverArt.ITunesBaseURL = defaultITunesBaseURL
	}
	c.CoverArt.CAABaseURL = strings.TrimRight(strings.TrimSpace(c.CoverArt.CAABaseURL), "/")
	if c.CoverArt.CAABaseURL == "" {
		c.CoverArt.CAABaseURL = defaultCAABaseURL
	}
	if c.CoverArt.TimeoutSeconds <= 0 {
		c.CoverArt.TimeoutSeconds = defaultArtTimeoutSeconds
	}
}

func (c *Config) normalizeWorkspace() {
	if c.Workspace.SweepAgeHours <= 0 {
		c.Workspace.SweepAgeHours = defaultSweepAgeHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
