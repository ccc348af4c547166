// Package workspace owns the per-run temporary directory and the reference
// to the currently running external process. Both must be released on every
// exit path: normal completion, failure, or interruption.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"carat/internal/logging"
)

// Prefix names every carat workspace so the orphan sweep can find stale ones
// from aborted runs.
const Prefix = "carat-"

const (
	deleteAttempts = 5
	deleteBackoff  = 200 * time.Millisecond
	killWait       = 2 * time.Second
)

// Lifecycle manages one run's workspace directory and active subprocess.
type Lifecycle struct {
	root   string
	logger *slog.Logger

	mu   sync.Mutex
	dir  string
	proc *os.Process
}

// New constructs a Lifecycle minting workspaces under root (os.TempDir when
// empty).
func New(root string, logger *slog.Logger) *Lifecycle {
	if strings.TrimSpace(root) == "" {
		root = os.TempDir()
	}
	return &Lifecycle{root: root, logger: logging.NewComponentLogger(logger, "workspace")}
}

// Dir returns the workspace directory, creating it on first use. Each run
// mints a uniquely named directory; no two runs ever share one.
func (l *Lifecycle) Dir() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir != "" {
		return l.dir, nil
	}
	dir := filepath.Join(l.root, Prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	l.dir = dir
	l.logger.Debug("workspace created", logging.String("dir", dir))
	return dir, nil
}

// Track records the currently running external process. Only the process
// supervisor calls this; only Cleanup reads it.
func (l *Lifecycle) Track(proc *os.Process) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.proc = proc
}

// Untrack clears the active process reference.
func (l *Lifecycle) Untrack() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.proc = nil
}

// ActiveProcess reports whether a subprocess is currently tracked.
func (l *Lifecycle) ActiveProcess() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.proc != nil
}

// Cleanup kills any still-running subprocess, then deletes the workspace.
// Idempotent: a second call is a no-op. Deletion retries because a
// just-killed subprocess may hold a file handle briefly.
func (l *Lifecycle) Cleanup() error {
	l.mu.Lock()
	proc := l.proc
	l.proc = nil
	dir := l.dir
	l.dir = ""
	l.mu.Unlock()

	if proc != nil {
		if err := proc.Kill(); err == nil {
			waitForExit(proc, killWait)
		}
	}

	if dir == "" {
		return nil
	}
	if err := removeAllRetry(dir); err != nil {
		return fmt.Errorf("delete workspace %s: %w", dir, err)
	}
	l.logger.Debug("workspace deleted", logging.String("dir", dir))
	return nil
}

// waitForExit gives the process a bounded window to die so file locks are
// released before deletion. Signal 0 probes liveness without touching it.
func waitForExit(proc *os.Process, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func removeAllRetry(dir string) error {
	var lastErr error
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		lastErr = os.RemoveAll(dir)
		if lastErr == nil {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return nil
			}
		}
		time.Sleep(deleteBackoff)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("directory still present after %d attempts", deleteAttempts)
	}
	return lastErr
}

// Sweep deletes abandoned workspaces under root whose modification time is
// older than maxAge. The active workspace, if any, is skipped.
func (l *Lifecycle) Sweep(maxAge time.Duration) {
	l.mu.Lock()
	active := l.dir
	root := l.root
	l.mu.Unlock()

	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if path == active {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := removeAllRetry(path); err != nil {
			l.logger.Warn("orphan sweep failed", logging.String("dir", path), logging.Error(err))
			continue
		}
		l.logger.Info("swept orphaned workspace", logging.String("dir", path))
	}
}
