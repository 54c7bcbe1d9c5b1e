//go:build windows

package tasks

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// fileLock mirrors the POSIX flock(2) implementation using
// CreateFile's exclusive share mode, grounded directly on the teacher's
// internal/instance/lock_windows.go AcquireLock/ReleaseLock pair.
type fileLock struct {
	handle windows.Handle
	path   string
}

// errWouldBlock is returned by tryAcquireFileLock when the lock is
// already held elsewhere; callers retry with backoff (see registry.go).
var errWouldBlock = fmt.Errorf("lock held")

func tryAcquireFileLock(path string) (*fileLock, error) {
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("converting lock path: %w", err)
	}
	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // exclusive: no sharing
		nil,
		windows.CREATE_ALWAYS,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if err == windows.ERROR_SHARING_VIOLATION {
			return nil, errWouldBlock
		}
		return nil, fmt.Errorf("acquiring exclusive lock on %s: %w", path, err)
	}
	return &fileLock{handle: handle, path: path}, nil
}

func (l *fileLock) release() error {
	return windows.CloseHandle(l.handle)
}
