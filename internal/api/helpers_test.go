package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/joblock"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/observability"
	"github.com/tphakala/segmentlab/internal/pipeline"
	"github.com/tphakala/segmentlab/internal/testutil"
)

// fakeDispatcher records queued payloads instead of running workflows.
type fakeDispatcher struct {
	store *repository.Store
	err   error

	mu        sync.Mutex
	processed []pipeline.ProcessAudioPayload
	trained   []pipeline.TrainModelPayload
	labeled   []pipeline.AutoLabelPayload
}

func (d *fakeDispatcher) ProcessAudio(p pipeline.ProcessAudioPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.processed = append(d.processed, p)
	return nil
}

func (d *fakeDispatcher) TrainModel(p pipeline.TrainModelPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.trained = append(d.trained, p)
	return nil
}

func (d *fakeDispatcher) AutoLabel(p pipeline.AutoLabelPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.labeled = append(d.labeled, p)
	return nil
}

func (d *fakeDispatcher) CreateRun(ctx context.Context, p pipeline.TrainModelPayload) (*entities.TrainingRun, error) {
	model := p.ModelName
	if model == "" {
		model = "yolov8n-cls.pt"
	}
	run := &entities.TrainingRun{
		Status: entities.RunPending,
		Params: entities.TrainingParams{ModelName: model, JobIDs: p.JobIDs},
	}
	if err := d.store.Runs.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

type testEnv struct {
	server     *Server
	store      *repository.Store
	dispatcher *fakeDispatcher
	settings   *conf.Settings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	settings := testutil.Settings(t)
	log := logger.NewConsoleLogger("api_test", logger.LogLevelError)

	manager, err := datastore.NewSQLiteManager(datastore.Config{
		Path:   settings.Database.SQLite.Path,
		Logger: log,
	})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() { _ = manager.Close() })
	store := repository.NewStore(manager.DB())

	locker, err := joblock.New(settings.Storage.LocksDir)
	require.NoError(t, err)
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	dispatcher := &fakeDispatcher{store: store}
	srv, err := New(settings,
		WithStore(store),
		WithDispatcher(dispatcher),
		WithLocker(locker),
		WithMetrics(m),
		WithLogger(log),
	)
	require.NoError(t, err)

	return &testEnv{server: srv, store: store, dispatcher: dispatcher, settings: settings}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Echo().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

// multipartRequest builds a multipart POST. files maps field to
// {filename, content}.
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][2]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, f := range files {
		fw, err := w.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedJob stores a completed job with n segments and a label on none of them.
func seedJob(t *testing.T, e *testEnv, n int) *entities.AudioJob {
	t.Helper()
	ctx := context.Background()
	job := &entities.AudioJob{
		SourceName:      "dawn.wav",
		SourcePath:      filepath.Join(e.settings.Storage.UploadsDir, "dawn.wav"),
		SegmentDuration: 2,
		Overlap:         50,
		Channels:        "mono",
		SpecType:        "mel",
		Status:          entities.JobCompleted,
		Progress:        100,
	}
	require.NoError(t, e.store.Jobs.Create(ctx, job))
	job.ResultPath = filepath.Join(e.settings.Storage.ResultsDir, "seed")
	require.NoError(t, e.store.Jobs.SetResultPath(ctx, job.ID, job.ResultPath))

	segs := make([]entities.Segment, n)
	for i := range segs {
		segs[i] = entities.Segment{
			JobID:             job.ID,
			Ordinal:           i,
			StartSeconds:      float64(i),
			EndSeconds:        float64(i) + 2,
			DisplayImagePath:  filepath.Join(job.ResultPath, "disp.png"),
			TrainingImagePath: filepath.Join(job.ResultPath, "train.png"),
		}
	}
	if n > 0 {
		require.NoError(t, e.store.Segments.CreateBatch(ctx, segs))
	}
	return job
}
