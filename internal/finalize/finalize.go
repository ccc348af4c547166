// Package finalize turns a working container plus resolved metadata into a
// finished library entry: index sheet, delivery audio file, and cover image.
package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carat/internal/cuesheet"
	"carat/internal/events"
	"carat/internal/ffmpeg"
	"carat/internal/logging"
)

// Transcoder is the critical-path audio extraction.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath, albumTitle string, durationSeconds float64) error
}

// ArtFetcher resolves cover image bytes. Failures are never fatal.
type ArtFetcher interface {
	Fetch(ctx context.Context, artist, album, releaseGroupID string) ([]byte, error)
}

// Request carries everything the coordinator needs for one run.
type Request struct {
	Container       string
	TargetDir       string
	Artist          string
	AlbumTitle      string
	Year            string
	ReleaseGroupID  string
	Chapters        []ffmpeg.ChapterMark
	TrackTitles     []string
	DurationSeconds float64
}

// Result lists the files the run produced. CoverPath is empty when no art
// arrived in time.
type Result struct {
	AudioPath string
	CuePath   string
	CoverPath string
}

// Coordinator runs the finalization stage. The index sheet is written before
// the transcode starts; the art fetch runs alongside the transcode and is
// discarded once its soft timeout elapses after the transcode completes.
type Coordinator struct {
	transcoder Transcoder
	art        ArtFetcher
	artTimeout time.Duration
	bus        *events.Bus
	logger     *slog.Logger
}

// New constructs a Coordinator. art may be nil to disable cover fetching.
func New(transcoder Transcoder, art ArtFetcher, artTimeout time.Duration, bus *events.Bus, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		transcoder: transcoder,
		art:        art,
		artTimeout: artTimeout,
		bus:        bus,
		logger:     logging.NewComponentLogger(logger, "finalize"),
	}
}

// Run executes the stage. The run fails iff the sheet write or the transcode
// fails; a missing cover is reported but never an error.
func (c *Coordinator) Run(ctx context.Context, req Request) (Result, error) {
	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create library entry dir: %w", err)
	}

	base := req.AlbumTitle + " (Atmos)"
	result := Result{
		AudioPath: filepath.Join(req.TargetDir, base+".m4a"),
		CuePath:   filepath.Join(req.TargetDir, base+".cue"),
	}

	artCh := c.startArtFetch(ctx, req)

	err := cuesheet.Write(result.CuePath, cuesheet.Album{
		Artist:      req.Artist,
		Title:       req.AlbumTitle,
		Year:        req.Year,
		AudioFile:   base + ".m4a",
		Chapters:    req.Chapters,
		TrackTitles: req.TrackTitles,
	})
	if err != nil {
		return Result{}, fmt.Errorf("write index sheet: %w", err)
	}
	c.bus.Message("[*] Wrote " + filepath.Base(result.CuePath))

	if err := c.transcoder.Transcode(ctx, req.Container, result.AudioPath, req.AlbumTitle, req.DurationSeconds); err != nil {
		return Result{}, err
	}
	c.bus.StageComplete("Transcoding", "audio extraction complete")

	result.CoverPath = c.collectArt(ctx, artCh, req.TargetDir)
	return result, nil
}

// startArtFetch launches the fetch on its own goroutine. The buffered channel
// lets a late result land without a receiver; it is simply never read.
func (c *Coordinator) startArtFetch(ctx context.Context, req Request) <-chan []byte {
	if c.art == nil {
		return nil
	}
	ch := make(chan []byte, 1)
	go func() {
		data, err := c.art.Fetch(ctx, req.Artist, req.AlbumTitle, req.ReleaseGroupID)
		if err != nil {
			c.logger.Debug("art fetch failed", logging.Error(err))
			// A known failure must unblock the collector immediately rather
			// than let it sit out the soft timeout.
			close(ch)
			return
		}
		ch <- data
	}()
	return ch
}

// collectArt waits up to the soft timeout for the fetch and writes the cover.
// Timeouts and write failures degrade to a coverless entry.
func (c *Coordinator) collectArt(ctx context.Context, artCh <-chan []byte, targetDir string) string {
	if artCh == nil {
		return ""
	}
	var data []byte
	select {
	case data = <-artCh:
		if len(data) == 0 {
			return ""
		}
	case <-time.After(c.artTimeout):
		c.bus.Message("[*] Cover art lookup timed out; continuing without artwork.")
		return ""
	case <-ctx.Done():
		return ""
	}

	coverPath := filepath.Join(targetDir, "cover.jpg")
	if err := os.WriteFile(coverPath, data, 0o644); err != nil {
		c.logger.Warn("cover write failed", logging.Error(err))
		return ""
	}
	c.bus.Message("[*] Saved cover art.")
	return coverPath
}
