package deps

import (
	"runtime"
	"strings"
)

// Toolset holds the resolved paths of the external executables a run needs.
type Toolset struct {
	MakeMKV  string
	FFmpeg   string
	FFprobe  string
	MKVMerge string
}

// Overrides carries explicit tool paths from configuration.
type Overrides struct {
	MakeMKV  string
	FFmpeg   string
	FFprobe  string
	MKVMerge string
}

// Requirements lists all tools with their platform fallback locations.
func Requirements(ov Overrides) []Requirement {
	makemkvName := "makemkvcon"
	if runtime.GOOS == "windows" {
		makemkvName = "makemkvcon64"
	}
	return []Requirement{
		{
			Name:        makemkvName,
			Command:     ov.MakeMKV,
			Description: "Required for disc scanning and ripping",
			Fallbacks: []string{
				`C:\Program Files (x86)\MakeMKV\makemkvcon64.exe`,
				"/Applications/MakeMKV.app/Contents/MacOS/makemkvcon",
				"/usr/bin/makemkvcon",
			},
		},
		{
			Name:        "ffmpeg",
			Command:     ov.FFmpeg,
			Description: "Required for the stream-copy transcode",
			Fallbacks: []string{
				`C:\ffmpeg\bin\ffmpeg.exe`,
				"/usr/local/bin/ffmpeg",
				"/opt/homebrew/bin/ffmpeg",
			},
		},
		{
			Name:        "ffprobe",
			Command:     ov.FFprobe,
			Description: "Required for stream and chapter inspection",
			Fallbacks: []string{
				`C:\ffmpeg\bin\ffprobe.exe`,
				"/usr/local/bin/ffprobe",
				"/opt/homebrew/bin/ffprobe",
			},
		},
		{
			Name:        "mkvmerge",
			Command:     ov.MKVMerge,
			Description: "Required for track-folder merges",
			Fallbacks: []string{
				`C:\Program Files\MKVToolNix\mkvmerge.exe`,
				"/usr/local/bin/mkvmerge",
				"/opt/homebrew/bin/mkvmerge",
			},
		},
	}
}

// Locate resolves every required tool and reports which are missing.
func Locate(ov Overrides) (Toolset, []string) {
	statuses := Check(Requirements(ov))
	var ts Toolset
	var missing []string
	for _, status := range statuses {
		if !status.Available {
			missing = append(missing, status.Name)
			continue
		}
		switch {
		case strings.HasPrefix(status.Name, "makemkvcon"):
			ts.MakeMKV = status.Resolved
		case status.Name == "ffmpeg":
			ts.FFmpeg = status.Resolved
		case status.Name == "ffprobe":
			ts.FFprobe = status.Resolved
		case status.Name == "mkvmerge":
			ts.MKVMerge = status.Resolved
		}
	}
	return ts, missing
}
