package joblock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/errors"
)

func TestTryLockExcludesSecondHolder(t *testing.T) {
	t.Parallel()

	l, err := New(filepath.Join(t.TempDir(), "locks"))
	require.NoError(t, err)

	release, err := l.TryLock("job", 7)
	require.NoError(t, err)

	_, err = l.TryLock("job", 7)
	require.ErrorIs(t, err, ErrLocked)

	other, err := l.TryLock("job", 8)
	require.NoError(t, err)
	require.NoError(t, other())

	require.NoError(t, release())
	again, err := l.TryLock("job", 7)
	require.NoError(t, err)
	require.NoError(t, again())
}

func TestLockWaitsForRelease(t *testing.T) {
	t.Parallel()

	l, err := New(t.TempDir())
	require.NoError(t, err)

	release, err := l.TryLock("run", 1)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := l.Lock(ctx, "run", 1)
	require.NoError(t, err)
	require.NoError(t, got())
}

func TestLockHonorsContext(t *testing.T) {
	t.Parallel()

	l, err := New(t.TempDir())
	require.NoError(t, err)
	release, err := l.TryLock("job", 1)
	require.NoError(t, err)
	defer func() { _ = release() }()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "job", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrLocked))
}

func TestInstanceLock(t *testing.T) {
	t.Parallel()

	l, err := New(t.TempDir())
	require.NoError(t, err)
	release, err := l.TryLockInstance()
	require.NoError(t, err)
	_, err = l.TryLockInstance()
	require.ErrorIs(t, err, ErrLocked)
	require.NoError(t, release())
}
