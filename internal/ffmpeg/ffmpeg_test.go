package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"

	"carat/internal/process"
	"carat/internal/services"
)

type stubRunner struct {
	lines map[string][]string // keyed by a distinguishing argv token
	calls []process.Invocation
}

func (s *stubRunner) Run(_ context.Context, inv process.Invocation) ([]string, error) {
	s.calls = append(s.calls, inv)
	for key, lines := range s.lines {
		for _, arg := range inv.Argv {
			if arg == key {
				return lines, nil
			}
		}
	}
	return nil, nil
}

func TestSelectAudioStreamPrefersTrueHD(t *testing.T) {
	streams := []AudioStream{
		{Index: 1, CodecName: "eac3", Channels: 8},
		{Index: 2, CodecName: "truehd", Channels: 8},
		{Index: 3, CodecName: "ac3", Channels: 6},
	}
	got, err := SelectAudioStream(streams)
	if err != nil {
		t.Fatalf("SelectAudioStream: %v", err)
	}
	if got.Index != 2 {
		t.Fatalf("expected TrueHD stream 2, got %d", got.Index)
	}
}

func TestSelectAudioStreamWidestChannelsWinsWithinCodec(t *testing.T) {
	streams := []AudioStream{
		{Index: 1, CodecName: "truehd", Channels: 6},
		{Index: 2, CodecName: "truehd", Channels: 8},
	}
	got, err := SelectAudioStream(streams)
	if err != nil {
		t.Fatalf("SelectAudioStream: %v", err)
	}
	if got.Index != 2 {
		t.Fatalf("expected 8-channel stream, got index %d", got.Index)
	}
}

func TestSelectAudioStreamEAC3Fallback(t *testing.T) {
	streams := []AudioStream{
		{Index: 1, CodecName: "aac", Channels: 2},
		{Index: 4, CodecName: "eac3", Channels: 8},
	}
	got, err := SelectAudioStream(streams)
	if err != nil {
		t.Fatalf("SelectAudioStream: %v", err)
	}
	if got.Index != 4 {
		t.Fatalf("expected EAC3 stream 4, got %d", got.Index)
	}
}

func TestSelectAudioStreamNoUsableStream(t *testing.T) {
	_, err := SelectAudioStream([]AudioStream{{Index: 0, CodecName: "aac", Channels: 2}})
	if !errors.Is(err, services.ErrNoAudioStreamFound) {
		t.Fatalf("expected ErrNoAudioStreamFound, got %v", err)
	}
}

func TestAudioStreamsDecodesProbeJSON(t *testing.T) {
	runner := &stubRunner{lines: map[string][]string{
		"-show_streams": {
			`{`,
			`  "streams": [`,
			`    {"index": 1, "codec_name": "truehd", "channels": 8},`,
			`    {"index": 2, "codec_name": "ac3", "channels": 6}`,
			`  ]`,
			`}`,
		},
	}}
	client, err := New("ffmpeg", "ffprobe", runner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	streams, err := client.AudioStreams(context.Background(), "/tmp/in.mkv")
	if err != nil {
		t.Fatalf("AudioStreams: %v", err)
	}
	if len(streams) != 2 || streams[0].CodecName != "truehd" || streams[1].Channels != 6 {
		t.Fatalf("unexpected streams: %+v", streams)
	}
	if !runner.calls[0].Quiet {
		t.Fatal("probe invocations must be quiet")
	}
}

func TestChaptersDecodesMarksAndDuration(t *testing.T) {
	runner := &stubRunner{lines: map[string][]string{
		"-show_chapters": {
			`{`,
			`  "chapters": [`,
			`    {"start_time": "0.000000", "tags": {"title": "Opener"}},`,
			`    {"start_time": "245.120000", "tags": {"title": "Second"}}`,
			`  ],`,
			`  "format": {"duration": "2971.458000"}`,
			`}`,
		},
	}}
	client, err := New("ffmpeg", "ffprobe", runner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	marks, duration, err := client.Chapters(context.Background(), "/tmp/in.mkv")
	if err != nil {
		t.Fatalf("Chapters: %v", err)
	}
	if len(marks) != 2 {
		t.Fatalf("expected 2 marks, got %d", len(marks))
	}
	if marks[0].Index != 1 || marks[0].StartTimeSeconds != 0 || marks[0].Title != "Opener" {
		t.Fatalf("unexpected first mark: %+v", marks[0])
	}
	if marks[1].StartTimeSeconds != 245.12 {
		t.Fatalf("unexpected second mark offset: %v", marks[1].StartTimeSeconds)
	}
	if duration != 2971.458 {
		t.Fatalf("unexpected duration: %v", duration)
	}
}

func TestTranscodeArgvShape(t *testing.T) {
	client, err := New("ffmpeg", "ffprobe", &stubRunner{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	argv := client.transcodeArgv("/work/in.mkv", "/work/out.m4a", "Album Name", AudioStream{Index: 2, CodecName: "truehd", Channels: 8})
	joined := strings.Join(argv, " ")
	for _, want := range []string{
		"-map 0:2",
		"-metadata title=Album Name",
		"-c:a copy",
		"-movflags +faststart",
		"-fflags +genpts",
		"-map_chapters -1",
		"-y /work/out.m4a",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("argv missing %q: %s", want, joined)
		}
	}
}

func TestTranscodeRunsSelectedStream(t *testing.T) {
	runner := &stubRunner{lines: map[string][]string{
		"-show_streams": {`{"streams": [{"index": 3, "codec_name": "eac3", "channels": 8}]}`},
	}}
	client, err := New("ffmpeg", "ffprobe", runner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Transcode(context.Background(), "/work/in.mkv", "/work/out.m4a", "Album", 1200); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected probe then transcode, got %d calls", len(runner.calls))
	}
	final := runner.calls[1]
	if final.TotalDurationSeconds != 1200 {
		t.Fatalf("duration not threaded: %v", final.TotalDurationSeconds)
	}
	if joined := strings.Join(final.Argv, " "); !strings.Contains(joined, "-map 0:3") {
		t.Fatalf("selected stream not mapped: %s", joined)
	}
}
