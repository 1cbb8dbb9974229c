// Package lock guards the cache directory against concurrent runs.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// RunLock is a single-writer advisory lock implemented via a PID file +
// flock(2). Keep the lock alive by keeping the file descriptor open.
// Readers of the cache are unaffected; only a second writing run is
// rejected.
type RunLock struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive non-blocking lock at lockPath, writes the
// current PID into the file, and returns a handle that must be released.
func Acquire(lockPath string) (*RunLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("another figx run holds the cache (lock %s): %w", lockPath, err)
	}

	if err := f.Truncate(0); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("write pid: %w", err)
	}

	return &RunLock{path: lockPath, f: f}, nil
}

func (l *RunLock) Path() string { return l.path }

func (l *RunLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
