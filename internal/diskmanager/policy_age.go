package diskmanager

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/tphakala/segmentlab/internal/logger"
)

// maxDeletions bounds one cleanup pass.
const maxDeletions = 1000

// AgeBasedCleanup removes the entries directly under dir whose modification
// time is older than maxAge. Directories are removed with their contents.
// It is used for staged model uploads left behind when the process stopped
// before an auto-label task ran. It returns the number of entries removed.
func AgeBasedCleanup(ctx context.Context, dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	log := GetLogger()
	expiration := time.Now().Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if deleted >= maxDeletions {
			break
		}
		if !entry.Type().IsRegular() && !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(expiration) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("failed to remove stale entry", logger.String("path", path), logger.Error(err))
			continue
		}
		deleted++
		log.Debug("removed stale entry", logger.String("path", path), logger.Time("modified", info.ModTime()))
	}
	return deleted, nil
}
