package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"carat/internal/config"
	"carat/internal/ffmpeg"
	"carat/internal/history"
	"carat/internal/services"
	"carat/internal/source"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Paths.LibraryDir = filepath.Join(t.TempDir(), "library")
	cfg.Scoring.LosslessScore = 1000
	cfg.Scoring.LossyScore = 500
	cfg.MakeMKV.MinTitleSeconds = 600
	return cfg
}

func TestRunRequiresArtistAndAlbum(t *testing.T) {
	p := New(testConfig(t), nil, nil, nil)
	_, err := p.Run(context.Background(), Request{Source: "0", Artist: "", Album: ""})
	if err == nil {
		t.Fatal("expected error for missing artist/album")
	}
}

func TestRunMissingSourceFailsEarly(t *testing.T) {
	p := New(testConfig(t), nil, nil, nil)
	_, err := p.Run(context.Background(), Request{
		Source: "/no/such/file.mkv",
		Artist: "A",
		Album:  "B",
	})
	if !errors.Is(err, services.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestRunRecordsFailureInHistory(t *testing.T) {
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	p := New(testConfig(t), nil, store, nil)
	_, runErr := p.Run(context.Background(), Request{
		Source: "/no/such/file.mkv",
		Artist: "A",
		Album:  "B",
	})
	if runErr == nil {
		t.Fatal("expected run failure")
	}

	runs, err := store.RecentRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("RecentRuns: %v, %d", err, len(runs))
	}
	if runs[0].Status != history.StatusFailed || runs[0].Error == "" {
		t.Fatalf("failure not recorded: %+v", runs[0])
	}
}

func TestLookupMetadataDefaultsYearToUnknown(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, nil, nil)

	meta := p.lookupMetadata(context.Background(), Request{Artist: "A", Album: "B"}, []ffmpeg.ChapterMark{
		{Index: 1, Title: "Opener"},
		{Index: 2},
	})
	if meta.year != "Unknown" {
		t.Fatalf("year = %q, want Unknown", meta.year)
	}
	if len(meta.trackTitles) != 2 || meta.trackTitles[0] != "Opener" {
		t.Fatalf("track titles = %v", meta.trackTitles)
	}
}

func TestNeedsOpticalTools(t *testing.T) {
	optical := []source.Kind{source.KindPhysicalDrive, source.KindDiscImage, source.KindOpticalFolder}
	for _, kind := range optical {
		if !needsOpticalTools(kind) {
			t.Errorf("%v should need optical tooling", kind)
		}
	}
	for _, kind := range []source.Kind{source.KindTrackFolder, source.KindDirectContainer} {
		if needsOpticalTools(kind) {
			t.Errorf("%v should not need optical tooling", kind)
		}
	}
}

func TestResolveLibraryRootPrecedence(t *testing.T) {
	ctx := context.Background()
	store, err := history.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	cfg := testConfig(t)
	p := New(cfg, nil, store, nil)

	// Explicit request wins.
	root, err := p.resolveLibraryRoot(ctx, "/explicit")
	if err != nil || root != "/explicit" {
		t.Fatalf("explicit: %q, %v", root, err)
	}

	// Config default when nothing persisted.
	root, err = p.resolveLibraryRoot(ctx, "")
	if err != nil || root != cfg.Paths.LibraryDir {
		t.Fatalf("config default: %q, %v", root, err)
	}

	// Persisted root outranks config default.
	if err := store.SetSetting(ctx, history.KeyLastLibraryRoot, "/persisted"); err != nil {
		t.Fatal(err)
	}
	root, err = p.resolveLibraryRoot(ctx, "")
	if err != nil || root != "/persisted" {
		t.Fatalf("persisted: %q, %v", root, err)
	}
}

func TestCheckLibraryWritable(t *testing.T) {
	if err := checkLibraryWritable(filepath.Join(t.TempDir(), "new", "library")); err != nil {
		t.Fatalf("writable root rejected: %v", err)
	}

	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
	readOnly := t.TempDir()
	if err := os.Chmod(readOnly, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(readOnly, 0o755)
	err := checkLibraryWritable(filepath.Join(readOnly, "sub"))
	if !errors.Is(err, services.ErrLibraryNotWritable) {
		t.Fatalf("expected ErrLibraryNotWritable, got %v", err)
	}
}

func TestSanitizeEntry(t *testing.T) {
	cases := map[string]string{
		"AC/DC":          "AC DC",
		"Plain Name":     "Plain Name",
		"  padded  ":     "padded",
		"back\\slash":    "back slash",
		"ctrl\x01chars":  "ctrlchars",
		"Night Pass 2.0": "Night Pass 2.0",
	}
	for in, want := range cases {
		if got := sanitizeEntry(in); got != want {
			t.Errorf("sanitizeEntry(%q) = %q, want %q", in, got, want)
		}
	}
}
