// Package joblock provides advisory file locks keyed by job so a running
// task and a delete of the same job exclude each other, also across
// processes sharing a data directory.
package joblock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tphakala/segmentlab/internal/errors"
)

const retryDelay = 100 * time.Millisecond

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.NewStd("lock is held by another task")

// Release frees a held lock.
type Release func() error

// Locker hands out locks stored as files under a directory.
type Locker struct {
	dir string
}

// New returns a Locker rooted at dir, creating it when needed.
func New(dir string) (*Locker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("create lock dir: %w", err)).
			Component("joblock").
			Category(errors.CategoryFileIO).
			Build()
	}
	return &Locker{dir: dir}, nil
}

// Path returns the lock file of a job.
func (l *Locker) Path(kind string, id uint) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-%d.lock", kind, id))
}

// Lock blocks until the lock of (kind, id) is acquired or ctx ends.
func (l *Locker) Lock(ctx context.Context, kind string, id uint) (Release, error) {
	fl := flock.New(l.Path(kind, id))
	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock %d: %w", kind, id, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire %s lock %d: %w", kind, id, ErrLocked)
	}
	return fl.Unlock, nil
}

// TryLock acquires the lock of (kind, id) without waiting.
func (l *Locker) TryLock(kind string, id uint) (Release, error) {
	return l.tryPath(l.Path(kind, id))
}

// TryLockInstance takes the process-wide lock that keeps two servers from
// sharing one data directory.
func (l *Locker) TryLockInstance() (Release, error) {
	return l.tryPath(filepath.Join(l.dir, "segmentlab.lock"))
}

func (l *Locker) tryPath(path string) (Release, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", filepath.Base(path), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, filepath.Base(path))
	}
	return fl.Unlock, nil
}
