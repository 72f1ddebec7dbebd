package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked means another pass holds the lock file.
var ErrLocked = errors.New("another pass is already running")

// PassLock is an advisory file lock that serializes lifecycle passes over
// one observation directory.
type PassLock struct {
	f *os.File
}

// AcquireLock takes a non-blocking exclusive lock on <dir>/pass.lock.
// Returns ErrLocked when someone else holds it.
func AcquireLock(dir string) (*PassLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, "pass.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flock(f); err != nil {
		f.Close()
		if errors.Is(err, errWouldBlock) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &PassLock{f: f}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *PassLock) Release() {
	if l == nil || l.f == nil {
		return
	}
	funlock(l.f)
	l.f.Close()
	l.f = nil
}
