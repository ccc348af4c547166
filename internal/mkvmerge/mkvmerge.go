// Package mkvmerge joins a folder of per-track containers into one seamless
// album container.
package mkvmerge

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"carat/internal/logging"
	"carat/internal/process"
	"carat/internal/services"
)

// Runner abstracts the process supervisor for testability.
type Runner interface {
	Run(ctx context.Context, inv process.Invocation) ([]string, error)
}

// mergeableExtensions are the container formats mkvmerge can append.
var mergeableExtensions = map[string]bool{
	".mkv": true,
	".mka": true,
	".m4a": true,
	".mp4": true,
}

// Client drives mkvmerge.
type Client struct {
	binary string
	runner Runner
	logger *slog.Logger
}

// New constructs a Client.
func New(binary string, runner Runner, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(binary) == "" {
		return nil, errors.New("mkvmerge binary required")
	}
	if runner == nil {
		return nil, errors.New("runner required")
	}
	return &Client{binary: binary, runner: runner, logger: logging.NewComponentLogger(logger, "mkvmerge")}, nil
}

// MergeableFiles lists the appendable containers in dir, sorted by name so
// track order follows the folder's naming.
func MergeableFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if mergeableExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// MergeFolder appends every mergeable file in sourceDir, in name order, into
// a single container at outputPath. The first file is the base; each
// subsequent file carries the mkvmerge append prefix.
func (c *Client) MergeFolder(ctx context.Context, sourceDir, outputPath string) error {
	files, err := MergeableFiles(sourceDir)
	if err != nil {
		return services.Wrap(services.ErrEmptySourceFolder, "merging", "folder scan", "", err)
	}
	if len(files) == 0 {
		return services.Wrap(
			services.ErrEmptySourceFolder,
			"merging",
			"folder scan",
			"no mergeable audio containers in "+sourceDir,
			nil,
		)
	}

	argv := []string{c.binary, "--priority", "lower", "-o", outputPath, files[0]}
	for _, file := range files[1:] {
		argv = append(argv, "+"+file)
	}
	c.logger.Info("merging track files", logging.Int("count", len(files)))

	if _, err := c.runner.Run(ctx, process.Invocation{Argv: argv, Description: "Merging tracks"}); err != nil {
		return services.Wrap(services.ErrCommandFailed, "merging", "mkvmerge", "", err)
	}
	return nil
}
