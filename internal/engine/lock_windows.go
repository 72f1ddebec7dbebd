//go:build windows

package engine

import (
	"errors"
	"os"
)

// Windows has no flock; O_CREATE|O_RDWR on the lock file is the best
// effort and passes are not serialized across processes.
var errWouldBlock = errors.New("lock would block")

func flock(f *os.File) error { return nil }

func funlock(f *os.File) {}
