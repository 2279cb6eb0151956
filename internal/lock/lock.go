// Package lock guards a piece directory against concurrent split, merge and
// watch runs from other processes.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	dtserrors "dtsplit/internal/errors"
)

// FileName is the lock file created inside each piece directory.
const FileName = ".lock"

// Lock represents an exclusive lock on a piece directory.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes the lock for dir without waiting. A lock held by another
// process is reported as a LOCKED error.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, dtserrors.New(dtserrors.PieceWriteFailed, "creating piece directory", err).WithPath(dir)
	}

	path := filepath.Join(dir, FileName)
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, dtserrors.Newf(dtserrors.Locked,
			"piece directory is locked by another process. Another dtsplit command may be running").WithPath(dir)
	}

	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
