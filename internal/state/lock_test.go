package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireRelease(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "tf", "1-main", "terraform.tfstate")
	l := NewLock(statePath)

	require.NoError(t, l.Acquire())
	assert.FileExists(t, statePath+".lock")

	require.NoError(t, l.Release())
	assert.NoFileExists(t, statePath+".lock")
}

func TestLockRefusesSecondHolder(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "terraform.tfstate")

	require.NoError(t, NewLock(statePath).Acquire())

	err := NewLock(statePath).Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another run")
}

func TestLockBreaksStaleLock(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "terraform.tfstate")
	l := NewLock(statePath)
	require.NoError(t, l.Acquire())

	// Age the lock file past the staleness threshold.
	old := time.Now().Add(-staleAfter - time.Minute)
	require.NoError(t, os.Chtimes(statePath+".lock", old, old))

	require.NoError(t, NewLock(statePath).Acquire())
}

func TestLockReleaseUnheldIsNoError(t *testing.T) {
	l := NewLock(filepath.Join(t.TempDir(), "terraform.tfstate"))
	require.NoError(t, l.Release())
}
