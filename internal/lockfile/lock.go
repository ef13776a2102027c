// Package lockfile provides file-based mutual exclusion for deployments.
// One lock file exists per target environment; holding it serializes
// deployments to that environment across processes.
package lockfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked is returned when the lock is already held by another process.
var ErrLocked = errors.New("lock already held by another process")

// Lock is a held exclusive lock backed by a file.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes a non-blocking exclusive lock on path, creating the
// file if needed. Returns ErrLocked when another process holds it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600) // #nosec G304 - controlled path from config
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{f: f, path: path}, nil
}

// Release unlocks and closes the lock file. The file itself is left in
// place; stale lock files are harmless since the flock dies with the
// process.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := flockUnlock(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }
