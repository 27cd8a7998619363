package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// InstanceLock enforces one daemon per data directory, the same
// gofrs/flock idiom the teacher uses to serialize concurrent model
// downloads (internal/embed.FileLock), applied here to the whole
// startup sequence instead of one download.
type InstanceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewInstanceLock returns a lock for the given data directory. The
// lock file is created at <dataDir>/docwell.lock.
func NewInstanceLock(dataDir string) *InstanceLock {
	path := filepath.Join(dataDir, "docwell.lock")
	return &InstanceLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking. Returns
// false, nil if another instance already holds it.
func (l *InstanceLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create data directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire instance lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times or when not
// locked.
func (l *InstanceLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	l.locked = false
	return nil
}
