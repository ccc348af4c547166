// Package makemkv wraps makemkvcon invocations: read-only info scans, title
// selection, full rips, drive autodetection, and the license probe.
package makemkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"carat/internal/events"
	"carat/internal/logging"
	"carat/internal/process"
	"carat/internal/services"
)

// Runner abstracts the process supervisor for testability.
type Runner interface {
	Run(ctx context.Context, inv process.Invocation) ([]string, error)
}

// Tiers holds the title-scoring policy constants.
type Tiers struct {
	Lossless int
	Lossy    int
}

// Client drives makemkvcon.
type Client struct {
	binary          string
	minTitleSeconds int
	ripTimeout      time.Duration
	tiers           Tiers
	runner          Runner
	bus             *events.Bus
	logger          *slog.Logger
}

// New constructs a Client.
func New(binary string, minTitleSeconds, ripTimeoutSeconds int, tiers Tiers, runner Runner, bus *events.Bus, logger *slog.Logger) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("makemkv binary required")
	}
	if runner == nil {
		return nil, errors.New("runner required")
	}
	return &Client{
		binary:          binary,
		minTitleSeconds: minTitleSeconds,
		ripTimeout:      time.Duration(ripTimeoutSeconds) * time.Second,
		tiers:           tiers,
		runner:          runner,
		bus:             bus,
		logger:          logging.NewComponentLogger(logger, "makemkv"),
	}, nil
}

// Scan runs the read-only info command against a source spec and returns the
// raw output lines. Classification is discarded; callers parse the text.
func (c *Client) Scan(ctx context.Context, sourceSpec, description string) ([]string, error) {
	return c.runner.Run(ctx, process.Invocation{
		Argv: []string{
			c.binary, "--progress=-stdout", "-r", "info", sourceSpec,
			fmt.Sprintf("--minlength=%d", c.minTitleSeconds),
		},
		Description: description,
	})
}

// Rip extracts the selected title into destDir and returns the working
// container: the largest produced file, with extraction byproducts deleted.
func (c *Client) Rip(ctx context.Context, sourceSpec, titleID, destDir string) (string, error) {
	ripCtx := ctx
	if c.ripTimeout > 0 {
		var cancel context.CancelFunc
		ripCtx, cancel = context.WithTimeout(ctx, c.ripTimeout)
		defer cancel()
	}

	_, err := c.runner.Run(ripCtx, process.Invocation{
		Argv: []string{
			c.binary, "--progress=-stdout", "-r", "mkv", sourceSpec, titleID, destDir,
			fmt.Sprintf("--minlength=%d", c.minTitleSeconds),
		},
		Description: fmt.Sprintf("Ripping title %s", titleID),
	})
	if err != nil {
		return "", services.Wrap(services.ErrCommandFailed, "ripping", "makemkv rip", "", err)
	}

	return selectLargestContainer(destDir)
}

// selectLargestContainer keeps the biggest .mkv in dir and removes the rest.
// MakeMKV occasionally emits small sibling titles despite an explicit
// selector; the album is always the largest.
func selectLargestContainer(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("inspect rip outputs: %w", err)
	}
	var winner string
	var winnerSize int64
	var losers []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".mkv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if info.Size() > winnerSize || winner == "" {
			if winner != "" {
				losers = append(losers, winner)
			}
			winner = path
			winnerSize = info.Size()
			continue
		}
		losers = append(losers, path)
	}
	if winner == "" {
		return "", services.Wrap(services.ErrNoOutputProduced, "ripping", "makemkv rip", "rip produced no container", nil)
	}
	for _, path := range losers {
		_ = os.Remove(path)
	}
	return winner, nil
}

// DetectDrive resolves the drive index. The -1 sentinel triggers a heuristic:
// scan drive 0's info dump for recordable/read-only Blu-ray disc markers.
func (c *Client) DetectDrive(ctx context.Context, requested int) (int, error) {
	if requested != -1 {
		return requested, nil
	}
	lines, err := c.runner.Run(ctx, process.Invocation{
		Argv:        []string{c.binary, "-r", "info", "disc:0"},
		Description: "Detecting optical drive",
	})
	if err != nil {
		return 0, services.Wrap(services.ErrSourceNotFound, "acquisition", "drive autodetect", "drive 0 scan failed", err)
	}
	for _, line := range lines {
		if strings.Contains(line, "BD-RE") || strings.Contains(line, "BD-ROM") {
			return 0, nil
		}
	}
	return 0, services.Wrap(services.ErrSourceNotFound, "acquisition", "drive autodetect", "no Blu-ray drive with media found", nil)
}

// licenseMarkers are the phrases makemkvcon prints when its evaluation state
// is unusable.
var licenseMarkers = []string{"expired", "too old", "evaluation"}

// CheckLicense probes the MakeMKV license state. The dev:all info command
// triggers the check without touching any disc.
func (c *Client) CheckLicense(ctx context.Context) error {
	lines, err := c.runner.Run(ctx, process.Invocation{
		Argv:        []string{c.binary, "info", "dev:all"},
		Description: "Validating MakeMKV license",
	})
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range licenseMarkers {
			if strings.Contains(lower, marker) {
				return services.Wrap(
					services.ErrLicenseInvalid,
					"preflight",
					"license check",
					"MakeMKV beta key appears to be expired or invalid; enter the latest beta key and retry",
					nil,
				)
			}
		}
	}
	if err != nil {
		return services.Wrap(services.ErrCommandFailed, "preflight", "license check", "", err)
	}
	return nil
}

// SourceSpecForDrive builds the makemkvcon source argument for a drive index.
func SourceSpecForDrive(index int) string {
	return "disc:" + strconv.Itoa(index)
}

// SourceSpecForImage builds the source argument for a disc image file.
func SourceSpecForImage(path string) string {
	return "iso:" + path
}

// SourceSpecForFolder builds the source argument for an unpacked optical
// structure.
func SourceSpecForFolder(path string) string {
	return "file:" + path
}
