// Package source classifies an opaque source string into an acquisition
// strategy and drives it to a single working container.
package source

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Kind enumerates the acquisition strategies.
type Kind int

const (
	// KindMissing marks a source string that names nothing on disk.
	KindMissing Kind = iota
	// KindPhysicalDrive is an optical drive index. -1 requests autodetection.
	KindPhysicalDrive
	// KindDiscImage is a disc image file ripped in place.
	KindDiscImage
	// KindOpticalFolder is an unpacked disc structure (contains BDMV).
	KindOpticalFolder
	// KindTrackFolder is a folder of sequential per-track containers.
	KindTrackFolder
	// KindDirectContainer is a single media file used as-is.
	KindDirectContainer
)

func (k Kind) String() string {
	switch k {
	case KindPhysicalDrive:
		return "physical drive"
	case KindDiscImage:
		return "disc image"
	case KindOpticalFolder:
		return "optical folder"
	case KindTrackFolder:
		return "track folder"
	case KindDirectContainer:
		return "direct container"
	default:
		return "missing"
	}
}

// Spec is the classified source. Exactly one interpretation applies.
type Spec struct {
	Kind       Kind
	DriveIndex int
	Path       string
}

// opticalMarker is the subfolder whose presence marks an unpacked Blu-ray.
const opticalMarker = "BDMV"

var driveIndexPattern = regexp.MustCompile(`^-?\d+$`)

// Classify maps a raw source string to a Spec. The function is total: every
// input yields a Spec, with KindMissing covering paths that name nothing.
// Integer syntax and the disc-image extension are decided without touching
// the filesystem; directory shapes require one stat.
func Classify(raw string) Spec {
	raw = strings.TrimSpace(raw)

	if driveIndexPattern.MatchString(raw) {
		index, err := strconv.Atoi(raw)
		if err == nil {
			return Spec{Kind: KindPhysicalDrive, DriveIndex: index}
		}
	}

	if strings.HasSuffix(strings.ToLower(raw), ".iso") {
		return Spec{Kind: KindDiscImage, Path: raw}
	}

	info, err := os.Stat(raw)
	if err != nil {
		return Spec{Kind: KindMissing, Path: raw}
	}
	if info.IsDir() {
		if marker, err := os.Stat(filepath.Join(raw, opticalMarker)); err == nil && marker.IsDir() {
			return Spec{Kind: KindOpticalFolder, Path: raw}
		}
		return Spec{Kind: KindTrackFolder, Path: raw}
	}
	return Spec{Kind: KindDirectContainer, Path: raw}
}
