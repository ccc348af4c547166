// Package progress classifies the line-oriented output of the external
// tools. MakeMKV, ffmpeg, and mkvmerge each speak a different progress
// protocol; Classify folds all three into one event shape.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies how a line was classified.
type Kind int

const (
	// KindFiltered marks protocol chatter that should be suppressed.
	KindFiltered Kind = iota
	// KindMessage marks a human-readable line worth surfacing.
	KindMessage
	// KindProgress marks a progress update, possibly with a percentage.
	KindProgress
)

// Stage names attached to progress events.
const (
	StageRipping     = "Ripping"
	StageTranscoding = "Transcoding"
	StageMerging     = "Merging"
)

// ExtractionStartCode is the MakeMKV progress-code line that marks the start
// of real extraction. Progress before it is drive spin-up noise.
const ExtractionStartCode = "PRGC:5017"

// Event is the classification of a single output line.
type Event struct {
	Kind    Kind
	Stage   string
	Percent float64 // -1 when no percentage is known
	Message string
}

// State carries the small cross-line state of one supervised invocation.
// It is scoped to a single subprocess and never shared.
type State struct {
	// IsExtracting is a one-way latch set by ExtractionStartCode.
	IsExtracting bool
	// LastWasProgress tells a renderer whether to overwrite the previous line.
	LastWasProgress bool
	// TranscodeDurationSeconds, when positive, lets ffmpeg stats lines carry
	// a percentage.
	TranscodeDurationSeconds float64
}

var (
	msgTokenPattern   = regexp.MustCompile(`[^,"]+|"[^"]*"`)
	mergePattern      = regexp.MustCompile(`^Progress: (\d+)%`)
	ffmpegTimePattern = regexp.MustCompile(`time=\s*(\d+:\d{2}:\d{2}(?:\.\d+)?|\d+(?:\.\d+)?)`)
)

var noisyPrefixes = []string{"DRV:", "TDRV:", "CIDC:", "SINFO:", "TINFO:", "CINFO:"}

// Classify maps one output line to an event and updates state. Rules are
// applied in priority order; the extraction latch is checked first and never
// affects classification on its own.
func Classify(line string, state *State) Event {
	line = strings.TrimRight(line, "\r\n")

	if strings.Contains(line, ExtractionStartCode) {
		state.IsExtracting = true
	}

	if isRipProtocol(line) {
		event := classifyRipProgress(line, state)
		state.LastWasProgress = true
		return event
	}

	if event, ok := classifyTranscodeProgress(line, state); ok {
		state.LastWasProgress = true
		return event
	}

	if match := mergePattern.FindStringSubmatch(line); match != nil {
		pct, _ := strconv.ParseFloat(match[1], 64)
		state.LastWasProgress = true
		return Event{Kind: KindProgress, Stage: StageMerging, Percent: pct, Message: line}
	}

	state.LastWasProgress = false

	if msg, ok := DecodeMessage(line); ok {
		return Event{Kind: KindMessage, Percent: -1, Message: msg}
	}

	for _, prefix := range noisyPrefixes {
		if strings.HasPrefix(line, prefix) {
			return Event{Kind: KindFiltered, Percent: -1}
		}
	}

	return Event{Kind: KindMessage, Percent: -1, Message: line}
}

func isRipProtocol(line string) bool {
	return strings.HasPrefix(line, "PRGV:") ||
		strings.HasPrefix(line, "PRGT:") ||
		strings.HasPrefix(line, "PRGC:")
}

// classifyRipProgress handles the MakeMKV current,,max triple. Percentages
// are only emitted once extraction has actually started, and malformed
// values outside [0,100] are rejected rather than clamped.
func classifyRipProgress(line string, state *State) Event {
	if !strings.HasPrefix(line, "PRGV:") && !strings.HasPrefix(line, "PRGT:") {
		return Event{Kind: KindFiltered, Percent: -1}
	}
	payload := line[strings.Index(line, ":")+1:]
	parts := strings.Split(payload, ",")
	if len(parts) < 3 {
		return Event{Kind: KindFiltered, Percent: -1}
	}
	current, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Event{Kind: KindFiltered, Percent: -1}
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Event{Kind: KindFiltered, Percent: -1}
	}
	if !state.IsExtracting || max <= 0 {
		return Event{Kind: KindFiltered, Percent: -1}
	}
	pct := current / max * 100
	if pct < 0 || pct > 100 {
		return Event{Kind: KindFiltered, Percent: -1}
	}
	return Event{Kind: KindProgress, Stage: StageRipping, Percent: pct, Message: line}
}

func classifyTranscodeProgress(line string, state *State) (Event, bool) {
	statsShape := strings.Contains(line, "size=") &&
		strings.Contains(line, "time=") &&
		strings.Contains(line, "bitrate=")
	speedShape := strings.Contains(line, "time=") && strings.Contains(line, "speed=")
	if !statsShape && !speedShape {
		return Event{}, false
	}

	event := Event{
		Kind:    KindProgress,
		Stage:   StageTranscoding,
		Percent: -1,
		Message: strings.TrimSpace(strings.ReplaceAll(line, "frame=", " ")),
	}
	if state.TranscodeDurationSeconds > 0 {
		if seconds, ok := parseFFmpegTime(line); ok {
			event.Percent = seconds / state.TranscodeDurationSeconds * 100
		}
	}
	return event, true
}

func parseFFmpegTime(line string) (float64, bool) {
	match := ffmpegTimePattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value := match[1]
	if !strings.Contains(value, ":") {
		seconds, err := strconv.ParseFloat(value, 64)
		return seconds, err == nil
	}
	segments := strings.Split(value, ":")
	if len(segments) != 3 {
		return 0, false
	}
	hours, err := strconv.ParseFloat(segments[0], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(segments[1], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(segments[2], 64)
	if err != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

// IsTranscodeStats reports whether a line has the ffmpeg stats shape. The
// supervisor uses it to pick a summary line after a successful run.
func IsTranscodeStats(line string) bool {
	return strings.Contains(line, "size=") && strings.Contains(line, "time=")
}

// DecodeMessage extracts the human-readable text from a MakeMKV MSG line.
// MSG format: MSG:code,flags,count,formatted_message,template,params...
// The fully resolved string is always the fourth token. The tokenizer is
// quote-aware because the message itself may contain commas.
func DecodeMessage(line string) (string, bool) {
	if !strings.HasPrefix(line, "MSG:") {
		return "", false
	}
	parts := msgTokenPattern.FindAllString(line, -1)
	if len(parts) < 4 {
		return "", false
	}
	return strings.Trim(parts[3], `"`), true
}
