// SPDX-License-Identifier: MPL-2.0

//go:build linux

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockFileName is the well-known lock file shared by all trainctl
// processes. The zero-byte file is harmless if orphaned: the kernel
// releases the flock when the fd closes, including on crash.
const lockFileName = "trainctl-run.lock"

// errLockHeld reports that another process already owns the training slot.
var errLockHeld = errors.New("another process is already running a training session")

// runLock holds a non-blocking exclusive flock on a well-known path,
// extending the in-process single-run guarantee across trainctl processes.
//
// The lock file lives in $XDG_RUNTIME_DIR (per-user tmpfs, auto-cleaned)
// with a fallback to os.TempDir() when the env var is unset.
type runLock struct {
	file *os.File
}

// acquireRunLock opens (or creates) the lock file and takes the flock
// without blocking. A held lock is a normal refusal, not a failure.
func acquireRunLock() (*runLock, error) {
	lockPath := lockFilePath()

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errLockHeld
		}
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}

	return &runLock{file: f}, nil
}

// Release unlocks and closes the lock file. Safe to call multiple times.
func (l *runLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

func lockFilePath() string {
	return lockFilePathWith(os.Getenv)
}

// lockFilePathWith resolves the lock path using the provided getenv, which
// lets tests avoid mutating process-global environment state.
func lockFilePathWith(getenv func(string) string) string {
	dir := getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, lockFileName)
}
