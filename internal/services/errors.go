package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for run failures. Callers classify with errors.Is; the
// detail text carries stage context added by Wrap.
var (
	// ErrMissingDependency indicates a required external tool could not be located.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrLicenseInvalid indicates MakeMKV reported an expired or invalid evaluation state.
	ErrLicenseInvalid = errors.New("license invalid")
	// ErrNoTitlesFound indicates a disc scan yielded zero scored titles.
	ErrNoTitlesFound = errors.New("no titles found")
	// ErrNoObjectAudioTrack indicates no title on the source carries an Atmos stream.
	ErrNoObjectAudioTrack = errors.New("no object-audio track")
	// ErrCommandFailed indicates an external tool exited non-zero.
	ErrCommandFailed = errors.New("command failed")
	// ErrNoOutputProduced indicates a rip completed without yielding a container.
	ErrNoOutputProduced = errors.New("no output produced")
	// ErrNoAudioStreamFound indicates the probe found no stream with a matching codec.
	ErrNoAudioStreamFound = errors.New("no audio stream found")
	// ErrEmptySourceFolder indicates a track-folder merge found nothing to merge.
	ErrEmptySourceFolder = errors.New("empty source folder")
	// ErrSourceNotFound indicates the source path does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrLibraryNotWritable indicates the library root cannot be written to.
	ErrLibraryNotWritable = errors.New("library not writable")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCommandFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error belongs to the eagerly-checked class that
// must abort before any destructive or time-consuming work begins.
func Fatal(err error) bool {
	return errors.Is(err, ErrMissingDependency) ||
		errors.Is(err, ErrLicenseInvalid) ||
		errors.Is(err, ErrLibraryNotWritable)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
