package ffmpeg

import (
	"context"
	"fmt"

	"carat/internal/logging"
	"carat/internal/process"
	"carat/internal/services"
)

// SelectAudioStream picks the stream to extract. TrueHD always wins over
// EAC3; within a codec the widest channel layout wins, since the Atmos bed
// rides the highest channel count.
func SelectAudioStream(streams []AudioStream) (AudioStream, error) {
	best := AudioStream{Index: -1}
	rank := func(s AudioStream) int {
		switch s.CodecName {
		case "truehd":
			return 2
		case "eac3":
			return 1
		default:
			return 0
		}
	}
	for _, s := range streams {
		if rank(s) == 0 {
			continue
		}
		if best.Index == -1 || rank(s) > rank(best) || (rank(s) == rank(best) && s.Channels > best.Channels) {
			best = s
		}
	}
	if best.Index == -1 {
		return AudioStream{}, services.Wrap(
			services.ErrNoAudioStreamFound,
			"transcoding",
			"stream selection",
			"container has no TrueHD or EAC3 audio stream",
			nil,
		)
	}
	return best, nil
}

// transcodeArgv builds the lossless extraction command. The audio stream is
// copied, chapters are stripped so players treat the file as one gapless
// album, and genpts repairs MakeMKV timestamp gaps.
func (c *Client) transcodeArgv(inputPath, outputPath, albumTitle string, stream AudioStream) []string {
	return []string{
		c.ffmpegBin,
		"-hide_banner", "-loglevel", "warning", "-stats",
		"-i", inputPath,
		"-map", fmt.Sprintf("0:%d", stream.Index),
		"-metadata", "title=" + albumTitle,
		"-c:a", "copy",
		"-f", "mp4",
		"-movflags", "+faststart",
		"-strict", "-2",
		"-fflags", "+genpts",
		"-map_chapters", "-1",
		"-y", outputPath,
	}
}

// Transcode extracts the best Atmos stream from inputPath into an .m4a at
// outputPath. durationSeconds, when known, enables percentage progress.
func (c *Client) Transcode(ctx context.Context, inputPath, outputPath, albumTitle string, durationSeconds float64) error {
	streams, err := c.AudioStreams(ctx, inputPath)
	if err != nil {
		return err
	}
	stream, err := SelectAudioStream(streams)
	if err != nil {
		return err
	}
	c.logger.Info("extracting audio stream",
		logging.Int("index", stream.Index),
		logging.String("codec", stream.CodecName),
		logging.Int("channels", stream.Channels))

	_, err = c.runner.Run(ctx, process.Invocation{
		Argv:                 c.transcodeArgv(inputPath, outputPath, albumTitle, stream),
		Description:          "Transcoding audio",
		TotalDurationSeconds: durationSeconds,
	})
	if err != nil {
		return services.Wrap(services.ErrCommandFailed, "transcoding", "ffmpeg", "", err)
	}
	return nil
}
