package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning reports that another run holds the state lock.
var ErrAlreadyRunning = errors.New("another carat run is already in progress")

// RunLock enforces single-instance execution across processes. Two rips
// contending for one optical drive or workspace root corrupt each other.
type RunLock struct {
	lock *flock.Flock
}

// NewRunLock creates the lock file handle under stateDir.
func NewRunLock(stateDir string) (*RunLock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &RunLock{lock: flock.New(filepath.Join(stateDir, "carat.lock"))}, nil
}

// Acquire takes the lock without blocking.
func (l *RunLock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.lock.Path()
}
