// Package ffmpeg wraps ffprobe stream/chapter inspection and the ffmpeg
// audio-extraction transcode.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"carat/internal/logging"
	"carat/internal/process"
	"carat/internal/services"
)

// Runner abstracts the process supervisor for testability.
type Runner interface {
	Run(ctx context.Context, inv process.Invocation) ([]string, error)
}

// AudioStream is one audio stream reported by ffprobe.
type AudioStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	Channels  int    `json:"channels"`
}

// ChapterMark is one chapter boundary with its absolute start offset.
type ChapterMark struct {
	Index            int
	StartTimeSeconds float64
	Title            string
}

// Client drives ffmpeg and ffprobe.
type Client struct {
	ffmpegBin  string
	ffprobeBin string
	runner     Runner
	logger     *slog.Logger
}

// New constructs a Client.
func New(ffmpegBin, ffprobeBin string, runner Runner, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(ffmpegBin) == "" || strings.TrimSpace(ffprobeBin) == "" {
		return nil, errors.New("ffmpeg and ffprobe binaries required")
	}
	if runner == nil {
		return nil, errors.New("runner required")
	}
	return &Client{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		runner:     runner,
		logger:     logging.NewComponentLogger(logger, "ffmpeg"),
	}, nil
}

// AudioStreams returns every audio stream in the container.
func (c *Client) AudioStreams(ctx context.Context, path string) ([]AudioStream, error) {
	lines, err := c.runner.Run(ctx, process.Invocation{
		Argv: []string{
			c.ffprobeBin, "-v", "error", "-print_format", "json",
			"-show_streams", "-select_streams", "a", path,
		},
		Quiet: true,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrCommandFailed, "probing", "ffprobe streams", "", err)
	}
	var payload struct {
		Streams []AudioStream `json:"streams"`
	}
	if err := json.Unmarshal([]byte(strings.Join(lines, "\n")), &payload); err != nil {
		return nil, fmt.Errorf("decode ffprobe streams: %w", err)
	}
	return payload.Streams, nil
}

// Chapters returns the container's chapter marks and total duration in
// seconds. A container without chapters yields an empty slice, not an error;
// the caller decides whether a single-track sheet is acceptable.
func (c *Client) Chapters(ctx context.Context, path string) ([]ChapterMark, float64, error) {
	lines, err := c.runner.Run(ctx, process.Invocation{
		Argv: []string{
			c.ffprobeBin, "-v", "error", "-print_format", "json",
			"-show_chapters", "-show_format", path,
		},
		Quiet: true,
	})
	if err != nil {
		return nil, 0, services.Wrap(services.ErrCommandFailed, "probing", "ffprobe chapters", "", err)
	}
	var payload struct {
		Chapters []struct {
			StartTime string `json:"start_time"`
			Tags      struct {
				Title string `json:"title"`
			} `json:"tags"`
		} `json:"chapters"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(strings.Join(lines, "\n")), &payload); err != nil {
		return nil, 0, fmt.Errorf("decode ffprobe chapters: %w", err)
	}

	marks := make([]ChapterMark, 0, len(payload.Chapters))
	for i, ch := range payload.Chapters {
		start, err := strconv.ParseFloat(ch.StartTime, 64)
		if err != nil {
			continue
		}
		marks = append(marks, ChapterMark{Index: i + 1, StartTimeSeconds: start, Title: ch.Tags.Title})
	}
	duration, _ := strconv.ParseFloat(payload.Format.Duration, 64)
	return marks, duration, nil
}
