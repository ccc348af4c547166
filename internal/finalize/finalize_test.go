package finalize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carat/internal/ffmpeg"
)

type fakeTranscoder struct {
	err     error
	delay   time.Duration
	started chan struct{}
	calls   int
}

func (f *fakeTranscoder) Transcode(ctx context.Context, inputPath, outputPath, albumTitle string, _ float64) error {
	f.calls++
	if f.started != nil {
		close(f.started)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("audio"), 0o644)
}

type fakeArt struct {
	data  []byte
	err   error
	delay time.Duration
	block bool
}

func (f *fakeArt) Fetch(ctx context.Context, artist, album, releaseGroupID string) ([]byte, error) {
	if f.block {
		<-make(chan struct{}) // never returns
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.data, f.err
}

func request(dir string) Request {
	return Request{
		Container:  "/work/in.mkv",
		TargetDir:  dir,
		Artist:     "The Ensemble",
		AlbumTitle: "Night Pass",
		Year:       "2019",
		Chapters: []ffmpeg.ChapterMark{
			{Index: 1, StartTimeSeconds: 0},
			{Index: 2, StartTimeSeconds: 245.12},
		},
		TrackTitles:     []string{"Opener", "Second Wind"},
		DurationSeconds: 2971,
	}
}

func TestRunProducesSheetAudioAndCover(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Night Pass (Atmos)")
	coord := New(&fakeTranscoder{}, &fakeArt{data: []byte("img")}, time.Second, nil, nil)

	result, err := coord.Run(context.Background(), request(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sheet, err := os.ReadFile(result.CuePath)
	if err != nil {
		t.Fatalf("cue sheet missing: %v", err)
	}
	if !strings.Contains(string(sheet), `TITLE "Night Pass (Atmos)"`) {
		t.Fatalf("unexpected sheet: %s", sheet)
	}
	if _, err := os.Stat(result.AudioPath); err != nil {
		t.Fatalf("audio missing: %v", err)
	}
	if result.CoverPath == "" {
		t.Fatal("cover not saved")
	}
	if data, _ := os.ReadFile(result.CoverPath); string(data) != "img" {
		t.Fatal("cover bytes wrong")
	}
}

func TestRunTranscodeFailureFailsRun(t *testing.T) {
	boom := errors.New("boom")
	coord := New(&fakeTranscoder{err: boom}, nil, time.Second, nil, nil)

	_, err := coord.Run(context.Background(), request(t.TempDir()))
	if !errors.Is(err, boom) {
		t.Fatalf("expected transcode failure, got %v", err)
	}
}

func TestRunHangingArtFetchBoundedBySoftTimeout(t *testing.T) {
	dir := t.TempDir()
	transcoder := &fakeTranscoder{delay: 50 * time.Millisecond}
	coord := New(transcoder, &fakeArt{block: true}, 100*time.Millisecond, nil, nil)

	start := time.Now()
	result, err := coord.Run(context.Background(), request(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("run not bounded by transcode+timeout: %v", elapsed)
	}
	if result.CoverPath != "" {
		t.Fatal("hanging fetch must yield no cover")
	}
	if _, err := os.Stat(filepath.Join(dir, "cover.jpg")); !os.IsNotExist(err) {
		t.Fatal("cover file must not exist")
	}
}

func TestRunArtFailureDoesNotFailRun(t *testing.T) {
	// The timeout is deliberately enormous: a failed fetch must release the
	// collector immediately, not after the soft deadline.
	coord := New(&fakeTranscoder{}, &fakeArt{err: errors.New("offline")}, time.Hour, nil, nil)
	start := time.Now()
	result, err := coord.Run(context.Background(), request(t.TempDir()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.CoverPath != "" {
		t.Fatal("failed fetch must yield no cover")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("failed fetch blocked the run for %v", elapsed)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(result.CuePath), "cover.jpg")); !os.IsNotExist(err) {
		t.Fatalf("no cover file expected, stat err = %v", err)
	}
}

func TestRunSheetWrittenBeforeTranscodeStarts(t *testing.T) {
	dir := t.TempDir()
	started := make(chan struct{})
	transcoder := &fakeTranscoder{started: started}
	coord := New(transcoder, nil, time.Second, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-started
		base := "Night Pass (Atmos).cue"
		if _, err := os.Stat(filepath.Join(dir, base)); err != nil {
			t.Errorf("sheet not on disk when transcode started: %v", err)
		}
	}()

	if _, err := coord.Run(context.Background(), request(dir)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-done
}

func TestRunCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transcoder := &fakeTranscoder{delay: 5 * time.Second}
	coord := New(transcoder, nil, time.Second, nil, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := coord.Run(ctx, request(t.TempDir()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
