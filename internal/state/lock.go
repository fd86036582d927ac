package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// staleAfter is how old a lock file may be before it is considered abandoned
// and broken automatically.
const staleAfter = 10 * time.Minute

// Lock guards a state file against concurrent convergence runs for the same
// (project, phase, suffix) key with an advisory lock file next to the state.
type Lock struct {
	statePath string
}

// NewLock returns a lock for the given state file path.
func NewLock(statePath string) *Lock {
	return &Lock{statePath: statePath}
}

// Acquire takes the lock, breaking stale locks left by crashed runs.
func (l *Lock) Acquire() error {
	lockPath := l.path()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > staleAfter {
			os.Remove(lockPath)
		} else {
			return fmt.Errorf("state is locked by another run (lock file: %s); "+
				"remove it manually if no other run is active", lockPath)
		}
	}

	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	return nil
}

// Release removes the lock file. Releasing an unheld lock is not an error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *Lock) path() string {
	return l.statePath + ".lock"
}
