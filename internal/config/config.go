package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Tools contains explicit overrides for the external executables. Empty
// values fall back to PATH lookup plus the platform fallback lists.
type Tools struct {
	MakeMKV  string `toml:"makemkv"`
	FFmpeg   string `toml:"ffmpeg"`
	FFprobe  string `toml:"ffprobe"`
	MKVMerge string `toml:"mkvmerge"`
}

// MakeMKV contains disc acquisition settings.
type MakeMKV struct {
	OpticalDrive         string `toml:"optical_drive"`
	MinTitleSeconds      int    `toml:"min_title_seconds"`
	RipTimeout           int    `toml:"rip_timeout"`
	LicenseCheckInterval int    `toml:"license_check_interval_hours"`
}

// Scoring contains the title-selection policy constants. These are product
// tuning knobs, not correctness requirements.
type Scoring struct {
	LosslessScore int `toml:"lossless_score"`
	LossyScore    int `toml:"lossy_score"`
}

// Metadata contains settings for the MusicBrainz lookup.
type Metadata struct {
	Enabled          bool   `toml:"enabled"`
	BaseURL          string `toml:"base_url"`
	MaxReleaseGroups int    `toml:"max_release_groups"`
}

// CoverArt contains settings for the cover-art fetch.
type CoverArt struct {
	Enabled        bool   `toml:"enabled"`
	ITunesBaseURL  string `toml:"itunes_base_url"`
	CAABaseURL     string `toml:"caa_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workspace contains temporary-directory lifecycle settings.
type Workspace struct {
	SweepAgeHours int `toml:"sweep_age_hours"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for carat.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Tools     Tools     `toml:"tools"`
	MakeMKV   MakeMKV   `toml:"makemkv"`
	Scoring   Scoring   `toml:"scoring"`
	Metadata  Metadata  `toml:"metadata"`
	CoverArt  CoverArt  `toml:"cover_art"`
	Workspace Workspace `toml:"workspace"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/carat/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// HistoryPath returns the run-history database location under the state dir.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// ExpandPath resolves a ~ prefix and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("carat.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
