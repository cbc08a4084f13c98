package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLockHeld is returned when another process holds the sync lock.
var ErrLockHeld = errors.New("another instance is already running")

// Lock is an exclusive advisory lock on a well-known file. The OS releases
// it when the file descriptor closes, including on process crash.
type Lock struct {
	path string
	f    *os.File
}

// AcquireLock takes the lock on path without blocking. It returns an error
// wrapping ErrLockHeld if another process holds it.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		if errors.Is(err, errWouldBlock) {
			return nil, fmt.Errorf("%w (lock file %s)", ErrLockHeld, path)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &Lock{path: path, f: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release unlocks and closes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	uerr := unlock(l.f)
	cerr := l.f.Close()
	l.f = nil
	if uerr != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, uerr)
	}
	return cerr
}
