package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"carat/internal/logging"
	"carat/internal/makemkv"
	"carat/internal/services"
)

// Ripper is the optical-acquisition surface the dispatcher drives.
type Ripper interface {
	DetectDrive(ctx context.Context, requested int) (int, error)
	SelectPrimaryTitle(ctx context.Context, sourceSpec string) (string, error)
	Rip(ctx context.Context, sourceSpec, titleID, destDir string) (string, error)
}

// Merger joins a track folder into one container.
type Merger interface {
	MergeFolder(ctx context.Context, sourceDir, outputPath string) error
}

// Dispatcher turns a classified Spec into a working container. Strategy
// selection lives here and only here; every branch feeds the same
// downstream stages.
type Dispatcher struct {
	ripper Ripper
	merger Merger
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(ripper Ripper, merger Merger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{ripper: ripper, merger: merger, logger: logging.NewComponentLogger(logger, "source")}
}

// Acquire produces the single working container for the run inside workDir.
// Direct containers pass through untouched; everything else materializes a
// new file under workDir.
func (d *Dispatcher) Acquire(ctx context.Context, spec Spec, workDir string) (string, error) {
	d.logger.Info("acquiring source",
		logging.String("kind", spec.Kind.String()),
		logging.String("path", spec.Path))

	switch spec.Kind {
	case KindPhysicalDrive:
		index, err := d.ripper.DetectDrive(ctx, spec.DriveIndex)
		if err != nil {
			return "", err
		}
		return d.ripSource(ctx, makemkv.SourceSpecForDrive(index), workDir)

	case KindDiscImage:
		if _, err := os.Stat(spec.Path); err != nil {
			return "", services.Wrap(services.ErrSourceNotFound, "acquisition", "disc image", spec.Path, err)
		}
		return d.ripSource(ctx, makemkv.SourceSpecForImage(spec.Path), workDir)

	case KindOpticalFolder:
		return d.ripSource(ctx, makemkv.SourceSpecForFolder(filepath.Join(spec.Path, opticalMarker)), workDir)

	case KindTrackFolder:
		output := filepath.Join(workDir, "album.mka")
		if err := d.merger.MergeFolder(ctx, spec.Path, output); err != nil {
			return "", err
		}
		return output, nil

	case KindDirectContainer:
		return spec.Path, nil

	default:
		return "", services.Wrap(services.ErrSourceNotFound, "acquisition", "classification", spec.Path, nil)
	}
}

func (d *Dispatcher) ripSource(ctx context.Context, sourceSpec, workDir string) (string, error) {
	titleID, err := d.ripper.SelectPrimaryTitle(ctx, sourceSpec)
	if err != nil {
		return "", err
	}
	return d.ripper.Rip(ctx, sourceSpec, titleID, workDir)
}
