// Package testutil provides helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/conf"
)

// DefaultTestTimeout bounds waits on asynchronous work in tests.
const DefaultTestTimeout = 5 * time.Second

// Settings returns settings rooted in a fresh temporary directory: every
// storage directory lives under it and the database is an SQLite file
// there. Segmentation uses 2 second windows with 50 percent overlap.
func Settings(t *testing.T) *conf.Settings {
	t.Helper()
	root := t.TempDir()

	s := &conf.Settings{}
	s.Storage = conf.StorageSettings{
		DataDir:         root,
		UploadsDir:      filepath.Join(root, "uploads"),
		ResultsDir:      filepath.Join(root, "results"),
		TempModelsDir:   filepath.Join(root, "temp_models"),
		TrainingRunsDir: filepath.Join(root, "training_runs"),
		LocksDir:        filepath.Join(root, "locks"),
	}
	s.Database.Type = conf.DBTypeSQLite
	s.Database.SQLite.Path = filepath.Join(root, "segmentlab.db")
	s.Segmentation = conf.SegmentationSettings{
		SegmentDuration: 2,
		Overlap:         50,
		Channels:        "mono",
		SpecType:        "mel",
	}
	s.Training.DefaultModel = "yolov8n-cls.pt"
	return s
}

// WaitForChannel waits for a signal on ch or fails the test after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}
