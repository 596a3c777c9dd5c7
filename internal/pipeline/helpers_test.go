package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/datastore"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/inference"
	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/segmentation"
	"github.com/tphakala/segmentlab/internal/trainer"
)

func testLogger() logger.Logger {
	return logger.NewConsoleLogger("pipeline_test", logger.LogLevelError)
}

func setupStore(t *testing.T) *repository.Store {
	t.Helper()
	manager, err := datastore.NewSQLiteManager(datastore.Config{
		Path:   filepath.Join(t.TempDir(), "pipeline_test.db"),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() { _ = manager.Close() })
	return repository.NewStore(manager.DB())
}

// fakeCodec writes placeholder artifacts and can fail at one window.
type fakeCodec struct {
	duration float64
	failAt   int // window index, -1 for never
	mu       sync.Mutex
	calls    int
}

func (f *fakeCodec) Duration(context.Context, string) (float64, error) {
	return f.duration, nil
}

func (f *fakeCodec) RenderSegment(_ context.Context, _, outDir, base string, w segmentation.Window, _ codec.RenderParams) (codec.Artifacts, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if w.Index == f.failAt {
		return codec.Artifacts{}, errors.ExternalFailure("codec", errors.NewStd("ffmpeg exited with status 1"))
	}
	names := codec.ArtifactNames(base, w.Index)
	arts := codec.Artifacts{
		AudioPath:         filepath.Join(outDir, names.AudioPath),
		DisplayImagePath:  filepath.Join(outDir, names.DisplayImagePath),
		TrainingImagePath: filepath.Join(outDir, names.TrainingImagePath),
	}
	for _, p := range []string{arts.AudioPath, arts.DisplayImagePath, arts.TrainingImagePath} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o600); err != nil {
			return codec.Artifacts{}, err
		}
	}
	return arts, nil
}

// fakeTrainer records the request and reports epochs.
type fakeTrainer struct {
	epochs    int
	err       error
	result    *trainer.Result
	called    bool
	calls     int
	request   trainer.Request
	trainSeen map[string]int // class dir -> files in train/
}

func (f *fakeTrainer) Train(ctx context.Context, req trainer.Request, onEpoch trainer.EpochFunc) (*trainer.Result, error) {
	f.called = true
	f.calls++
	f.request = req
	f.trainSeen = map[string]int{}
	entries, _ := os.ReadDir(filepath.Join(req.DatasetDir, "train"))
	for _, e := range entries {
		files, _ := os.ReadDir(filepath.Join(req.DatasetDir, "train", e.Name()))
		f.trainSeen[e.Name()] = len(files)
	}
	for i := 1; i <= f.epochs; i++ {
		if err := onEpoch(ctx, i, f.epochs); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeClassifier predicts the class whose name appears in the image content.
type fakeClassifier struct {
	names  []string
	closed bool
}

func (f *fakeClassifier) Variant() inference.Variant { return inference.VariantONNX }
func (f *fakeClassifier) ClassNames() []string       { return f.names }
func (f *fakeClassifier) Close() error               { f.closed = true; return nil }

func (f *fakeClassifier) Predict(_ context.Context, imagePath string) (inference.Prediction, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return inference.Prediction{}, err
	}
	for i, name := range f.names {
		if strings.Contains(string(data), name) {
			return inference.Prediction{Variant: inference.VariantONNX, Index: i, Label: name, Confidence: 0.9}, nil
		}
	}
	return inference.Prediction{Variant: inference.VariantONNX, Index: 0, Label: f.names[0], Confidence: 0.5}, nil
}

// progressRecorder collects committed snapshots.
type progressRecorder struct {
	mu    sync.Mutex
	snaps []jobstate.Snapshot
}

func (r *progressRecorder) observe(s jobstate.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *progressRecorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.Status
	}
	return out
}

func (r *progressRecorder) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.Progress
	}
	return out
}

func createAudioJob(t *testing.T, store *repository.Store, resultDir string) *entities.AudioJob {
	t.Helper()
	job := &entities.AudioJob{
		SourceName:      "marsh.wav",
		SourcePath:      "/uploads/1_marsh.wav",
		ResultPath:      resultDir,
		SegmentDuration: 2.0,
		Overlap:         50,
		Channels:        codec.ChannelsMono,
		SpecType:        codec.SpecMel,
		Status:          entities.JobPending,
	}
	require.NoError(t, store.Jobs.Create(context.Background(), job))
	return job
}
