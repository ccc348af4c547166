// Package pipeline orchestrates a full album run: preflight, acquisition,
// probing, metadata enrichment, and finalization, wrapped in one workspace
// lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"carat/internal/config"
	"carat/internal/coverart"
	"carat/internal/deps"
	"carat/internal/events"
	"carat/internal/ffmpeg"
	"carat/internal/finalize"
	"carat/internal/history"
	"carat/internal/logging"
	"carat/internal/makemkv"
	"carat/internal/mkvmerge"
	"carat/internal/musicbrainz"
	"carat/internal/process"
	"carat/internal/services"
	"carat/internal/source"
	"carat/internal/workspace"
)

// Request carries the user-facing parameters of one run.
type Request struct {
	Source      string
	Artist      string
	Album       string
	LibraryRoot string
}

// Result describes a completed run.
type Result struct {
	TargetDir string
	AudioPath string
	CuePath   string
	CoverPath string
	Artist    string
	Album     string
	Year      string
}

// Pipeline wires the run stages together. One Pipeline may serve many runs,
// but runs never overlap; the history run lock enforces that across
// processes.
type Pipeline struct {
	cfg    *config.Config
	bus    *events.Bus
	store  *history.Store
	logger *slog.Logger
}

// New constructs a Pipeline. store may be nil to skip history recording and
// license-check caching.
func New(cfg *config.Config, bus *events.Bus, store *history.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		bus:    bus,
		store:  store,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes one album run end to end. The outcome, success or failure, is
// recorded in history before returning.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	spec := source.Classify(req.Source)

	result, err := p.run(ctx, req, spec)
	p.record(req, spec, result, err, started)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, req Request, spec source.Spec) (*Result, error) {
	if strings.TrimSpace(req.Album) == "" || strings.TrimSpace(req.Artist) == "" {
		return nil, errors.New("artist and album are required")
	}
	if spec.Kind == source.KindMissing {
		return nil, services.Wrap(services.ErrSourceNotFound, "preflight", "source classification", req.Source, nil)
	}

	libraryRoot, err := p.resolveLibraryRoot(ctx, req.LibraryRoot)
	if err != nil {
		return nil, err
	}

	toolset, err := p.locateTools()
	if err != nil {
		return nil, err
	}
	if err := checkLibraryWritable(libraryRoot); err != nil {
		return nil, err
	}

	lifecycle := workspace.New("", p.logger)
	defer func() {
		if err := lifecycle.Cleanup(); err != nil {
			p.logger.Warn("workspace cleanup failed", logging.Error(err))
		}
	}()
	if age := p.cfg.Workspace.SweepAgeHours; age > 0 {
		lifecycle.Sweep(time.Duration(age) * time.Hour)
	}

	supervisor := process.New(lifecycle, p.bus, p.logger)
	ripper, err := makemkv.New(
		toolset.MakeMKV,
		p.cfg.MakeMKV.MinTitleSeconds,
		p.cfg.MakeMKV.RipTimeout,
		makemkv.Tiers{Lossless: p.cfg.Scoring.LosslessScore, Lossy: p.cfg.Scoring.LossyScore},
		supervisor,
		p.bus,
		p.logger,
	)
	if err != nil {
		return nil, err
	}

	if needsOpticalTools(spec.Kind) {
		if err := p.ensureLicense(ctx, ripper); err != nil {
			return nil, err
		}
	}

	merger, err := mkvmerge.New(toolset.MKVMerge, supervisor, p.logger)
	if err != nil {
		return nil, err
	}
	prober, err := ffmpeg.New(toolset.FFmpeg, toolset.FFprobe, supervisor, p.logger)
	if err != nil {
		return nil, err
	}

	workDir, err := lifecycle.Dir()
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	container, err := source.NewDispatcher(ripper, merger, p.logger).Acquire(ctx, spec, workDir)
	if err != nil {
		return nil, err
	}
	p.bus.StageComplete("Ripping", "working container ready")

	chapters, duration, err := prober.Chapters(ctx, container)
	if err != nil {
		return nil, err
	}

	meta := p.lookupMetadata(ctx, req, chapters)

	targetDir := filepath.Join(libraryRoot, sanitizeEntry(req.Artist), sanitizeEntry(req.Album)+" (Atmos)")
	coordinator := finalize.New(prober, p.artFetcher(), p.artTimeout(), p.bus, p.logger)
	finalized, err := coordinator.Run(ctx, finalize.Request{
		Container:       container,
		TargetDir:       targetDir,
		Artist:          req.Artist,
		AlbumTitle:      req.Album,
		Year:            meta.year,
		ReleaseGroupID:  meta.releaseGroupID,
		Chapters:        chapters,
		TrackTitles:     meta.trackTitles,
		DurationSeconds: duration,
	})
	if err != nil {
		return nil, err
	}

	p.rememberLibraryRoot(ctx, libraryRoot)
	p.bus.Message("[+] Library entry ready: " + targetDir)

	return &Result{
		TargetDir: targetDir,
		AudioPath: finalized.AudioPath,
		CuePath:   finalized.CuePath,
		CoverPath: finalized.CoverPath,
		Artist:    req.Artist,
		Album:     req.Album,
		Year:      meta.year,
	}, nil
}

// locateTools resolves all external binaries, failing before any work starts
// when one is missing.
func (p *Pipeline) locateTools() (deps.Toolset, error) {
	toolset, missing := deps.Locate(deps.Overrides{
		MakeMKV:  p.cfg.Tools.MakeMKV,
		FFmpeg:   p.cfg.Tools.FFmpeg,
		FFprobe:  p.cfg.Tools.FFprobe,
		MKVMerge: p.cfg.Tools.MKVMerge,
	})
	if len(missing) > 0 {
		return deps.Toolset{}, services.Wrap(
			services.ErrMissingDependency,
			"preflight",
			"tool discovery",
			"missing: "+strings.Join(missing, ", "),
			nil,
		)
	}
	return toolset, nil
}

// needsOpticalTools reports whether the strategy invokes MakeMKV.
func needsOpticalTools(kind source.Kind) bool {
	switch kind {
	case source.KindPhysicalDrive, source.KindDiscImage, source.KindOpticalFolder:
		return true
	default:
		return false
	}
}

// ensureLicense probes the MakeMKV license state, skipping the probe when a
// recent successful check is on record.
func (p *Pipeline) ensureLicense(ctx context.Context, ripper *makemkv.Client) error {
	interval := time.Duration(p.cfg.MakeMKV.LicenseCheckInterval) * time.Hour
	if p.store != nil && interval > 0 {
		checked, err := p.store.LicenseCheckedAt(ctx)
		if err == nil && !checked.IsZero() && time.Since(checked) < interval {
			return nil
		}
	}
	if err := ripper.CheckLicense(ctx); err != nil {
		return err
	}
	if p.store != nil {
		if err := p.store.MarkLicenseChecked(ctx, time.Now()); err != nil {
			p.logger.Warn("license check not cached", logging.Error(err))
		}
	}
	return nil
}

func checkLibraryWritable(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return services.Wrap(services.ErrLibraryNotWritable, "preflight", "library root", root, err)
	}
	if err := unix.Access(root, unix.W_OK); err != nil {
		return services.Wrap(services.ErrLibraryNotWritable, "preflight", "library root", root, err)
	}
	return nil
}

// resolveLibraryRoot picks, in order: the explicit request value, the last
// root persisted from a previous run, then the configured default.
func (p *Pipeline) resolveLibraryRoot(ctx context.Context, requested string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		return requested, nil
	}
	if p.store != nil {
		if last, err := p.store.Setting(ctx, history.KeyLastLibraryRoot); err == nil && last != "" {
			return last, nil
		}
	}
	if p.cfg.Paths.LibraryDir != "" {
		return p.cfg.Paths.LibraryDir, nil
	}
	return "", services.Wrap(services.ErrLibraryNotWritable, "preflight", "library root", "no library root configured", nil)
}

func (p *Pipeline) rememberLibraryRoot(ctx context.Context, root string) {
	if p.store == nil {
		return
	}
	if err := p.store.SetSetting(ctx, history.KeyLastLibraryRoot, root); err != nil {
		p.logger.Warn("library root not persisted", logging.Error(err))
	}
}

type metadataMatch struct {
	year           string
	releaseGroupID string
	trackTitles    []string
}

// lookupMetadata enriches the run with year and track titles. Lookup failure
// degrades to positional track names; it never fails the run.
func (p *Pipeline) lookupMetadata(ctx context.Context, req Request, chapters []ffmpeg.ChapterMark) metadataMatch {
	meta := metadataMatch{year: "Unknown"}
	for _, ch := range chapters {
		if strings.TrimSpace(ch.Title) != "" {
			meta.trackTitles = append(meta.trackTitles, ch.Title)
		} else {
			meta.trackTitles = append(meta.trackTitles, "")
		}
	}

	if !p.cfg.Metadata.Enabled || len(chapters) == 0 {
		return meta
	}
	client := musicbrainz.New(p.cfg.Metadata.BaseURL, p.cfg.Metadata.MaxReleaseGroups, nil, p.logger)
	release, err := client.Lookup(ctx, req.Artist+" "+req.Album, len(chapters))
	if err != nil {
		p.logger.Info("metadata lookup failed; using positional track names", logging.Error(err))
		p.bus.Message("[*] No metadata match; track titles fall back to chapter numbers.")
		return meta
	}
	if strings.TrimSpace(release.Year) != "" {
		meta.year = release.Year
	}
	meta.releaseGroupID = release.ReleaseGroupID
	meta.trackTitles = release.TrackTitles
	return meta
}

func (p *Pipeline) artFetcher() finalize.ArtFetcher {
	if !p.cfg.CoverArt.Enabled {
		return nil
	}
	return coverart.New(p.cfg.CoverArt.ITunesBaseURL, p.cfg.CoverArt.CAABaseURL, nil, p.logger)
}

func (p *Pipeline) artTimeout() time.Duration {
	if p.cfg.CoverArt.TimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(p.cfg.CoverArt.TimeoutSeconds) * time.Second
}

// record appends the run outcome to history.
func (p *Pipeline) record(req Request, spec source.Spec, result *Result, runErr error, started time.Time) {
	if p.store == nil {
		return
	}
	run := history.Run{
		Source:      req.Source,
		SourceKind:  spec.Kind.String(),
		Artist:      req.Artist,
		Album:       req.Album,
		Status:      history.StatusCompleted,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	if result != nil {
		run.TargetDir = result.TargetDir
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	}
	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := p.store.RecordRun(recordCtx, run); err != nil {
		p.logger.Warn("run not recorded", logging.Error(err))
	}
}

// sanitizeEntry strips path separators and control characters from a library
// path component.
func sanitizeEntry(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == 0:
			b.WriteRune(' ')
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
