// Package process runs external commands to completion, streaming their
// merged output line-by-line through the progress classifier.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"carat/internal/events"
	"carat/internal/logging"
	"carat/internal/progress"
	"carat/internal/services"
)

// Tracker records the live process handle so it can be terminated from
// outside the supervisor's call stack.
type Tracker interface {
	Track(*os.Process)
	Untrack()
}

// nopTracker backs supervisors constructed without a lifecycle (tests).
type nopTracker struct{}

func (nopTracker) Track(*os.Process) {}
func (nopTracker) Untrack()          {}

// CommandError reports a non-zero exit, keeping the argument vector and all
// captured output for diagnostics.
type CommandError struct {
	Argv     []string
	ExitCode int
	Output   []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed (code %d): %s", e.ExitCode, strings.Join(e.Argv, " "))
}

func (e *CommandError) Unwrap() error { return services.ErrCommandFailed }

// Invocation describes one external command run.
type Invocation struct {
	Argv        []string
	Description string
	// TotalDurationSeconds, when positive, lets ffmpeg stats lines carry a
	// percentage.
	TotalDurationSeconds float64
	// Quiet captures output without publishing per-line events or a summary.
	// Probe commands whose output is machine-parsed set this.
	Quiet bool
}

// Supervisor runs one command at a time. The read loop is deliberately
// single-threaded: line framing and the parser-state latches are not safe to
// interleave, so one invocation never has concurrent readers.
type Supervisor struct {
	tracker Tracker
	bus     *events.Bus
	logger  *slog.Logger
}

// New constructs a Supervisor. tracker and bus may be nil.
func New(tracker Tracker, bus *events.Bus, logger *slog.Logger) *Supervisor {
	if tracker == nil {
		tracker = nopTracker{}
	}
	return &Supervisor{
		tracker: tracker,
		bus:     bus,
		logger:  logging.NewComponentLogger(logger, "process"),
	}
}

// Run launches the command with merged stdout/stderr, forwards every line's
// classification to the event bus, and blocks until exit. On any early
// unwind the process is killed and waited on before the error propagates.
// A non-zero exit yields a CommandError with all captured lines preserved.
func (s *Supervisor) Run(ctx context.Context, inv Invocation) ([]string, error) {
	if len(inv.Argv) == 0 {
		return nil, errors.New("empty argument vector")
	}
	if inv.Description != "" {
		s.bus.Message(fmt.Sprintf("[*] %s...", inv.Description))
	}
	s.logger.Debug("running command", logging.String("argv", strings.Join(inv.Argv, " ")))

	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = 5 * time.Second

	started := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", inv.Argv[0], err)
	}

	s.tracker.Track(cmd.Process)
	defer s.tracker.Untrack()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
		pw.Close()
	}()

	waited := false
	defer func() {
		if !waited {
			_ = cmd.Process.Kill()
			<-done
		}
	}()

	state := &progress.State{TranscodeDurationSeconds: inv.TotalDurationSeconds}
	var lines []string

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if !inv.Quiet {
			s.forward(progress.Classify(line, state))
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		// The pipe is synchronous, so a stalled reader would wedge the
		// child mid-write and cmd.Wait would never return. Keep draining
		// until the process exits.
		s.logger.Warn("output scan aborted", logging.Error(scanErr))
		go func() { _, _ = io.Copy(io.Discard, pr) }()
	}

	waitErr := <-done
	waited = true

	if ctx.Err() != nil {
		return lines, ctx.Err()
	}
	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return lines, &CommandError{Argv: append([]string(nil), inv.Argv...), ExitCode: exitCode, Output: lines}
	}

	if !inv.Quiet {
		s.emitSummary(lines, time.Since(started))
	}
	return lines, nil
}

func (s *Supervisor) forward(event progress.Event) {
	switch event.Kind {
	case progress.KindProgress:
		s.bus.Progress(event.Stage, event.Percent, event.Message, true)
	case progress.KindMessage:
		s.bus.Message("[*] " + event.Message)
	case progress.KindFiltered:
		// suppressed chatter
	}
}

// emitSummary reports elapsed time, echoing the final transcode stats line
// when one exists.
func (s *Supervisor) emitSummary(lines []string, elapsed time.Duration) {
	for i := len(lines) - 1; i >= 0; i-- {
		if progress.IsTranscodeStats(lines[i]) {
			stats := strings.TrimSpace(strings.ReplaceAll(lines[i], "frame=", " "))
			s.bus.Message(fmt.Sprintf("[+] Transcode finished in %.1fs -> %s", elapsed.Seconds(), stats))
			return
		}
	}
	s.bus.Message(fmt.Sprintf("[+] Task finished in %.1f seconds.", elapsed.Seconds()))
}
