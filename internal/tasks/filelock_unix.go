//go:build !windows

package tasks

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is a per-task exclusive advisory lock on a sidecar ".lock"
// file, acquired via flock(2) (spec.md section 9's "native exclusive
// advisory file lock primitive"). Grounded on the shape of the teacher's
// Windows-only internal/instance/lock_windows.go, extended with a real
// POSIX implementation since hooks here must run cross-platform.
type fileLock struct {
	f *os.File
}

// errWouldBlock is returned by tryAcquireFileLock when the lock is
// already held elsewhere; callers retry with backoff (see registry.go).
var errWouldBlock = fmt.Errorf("lock held")

func tryAcquireFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, errWouldBlock
		}
		return nil, fmt.Errorf("acquiring exclusive lock on %s: %w", path, err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("releasing lock: %w", err)
	}
	return l.f.Close()
}
