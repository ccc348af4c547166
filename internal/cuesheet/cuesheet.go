// Package cuesheet writes the gapless index sheet that maps chapter offsets
// to track titles at CD frame resolution.
package cuesheet

import (
	"fmt"
	"math"
	"os"
	"strings"

	"carat/internal/ffmpeg"
)

// framesPerSecond is the CD audio frame rate used for INDEX timestamps.
const framesPerSecond = 75

// Album carries everything the sheet needs.
type Album struct {
	Artist    string
	Title     string
	Year      string
	AudioFile string
	Chapters  []ffmpeg.ChapterMark
	// TrackTitles pairs positionally with Chapters. Missing or short lists
	// fall back to "Track N".
	TrackTitles []string
}

// FrameTimestamp converts a second offset to MM:SS:FF form. Fractional
// seconds floor to whole frames so an index never points past its chapter.
func FrameTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalFrames := int(math.Floor(seconds * framesPerSecond))
	minutes := totalFrames / (60 * framesPerSecond)
	rem := totalFrames % (60 * framesPerSecond)
	return fmt.Sprintf("%02d:%02d:%02d", minutes, rem/framesPerSecond, rem%framesPerSecond)
}

// Render produces the sheet text: performer, title, date comment, file
// reference, then one block per track. The date line is always present;
// an unresolved year renders as "Unknown".
func Render(album Album) string {
	year := album.Year
	if strings.TrimSpace(year) == "" {
		year = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PERFORMER %q\n", album.Artist)
	fmt.Fprintf(&b, "TITLE %q\n", album.Title+" (Atmos)")
	fmt.Fprintf(&b, "REM DATE %s\n", year)
	fmt.Fprintf(&b, "FILE %q WAVE\n", album.AudioFile)

	for i, chapter := range album.Chapters {
		title := fmt.Sprintf("Track %d", i+1)
		if i < len(album.TrackTitles) && strings.TrimSpace(album.TrackTitles[i]) != "" {
			title = album.TrackTitles[i]
		}
		fmt.Fprintf(&b, "  TRACK %02d AUDIO\n", i+1)
		fmt.Fprintf(&b, "    TITLE %q\n", title)
		fmt.Fprintf(&b, "    INDEX 01 %s\n", FrameTimestamp(chapter.StartTimeSeconds))
	}
	return b.String()
}

// Write renders the sheet to path.
func Write(path string, album Album) error {
	return os.WriteFile(path, []byte(Render(album)), 0o644)
}
