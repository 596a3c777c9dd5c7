package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/export"
)

func TestCreateJobStoresUploadAndQueues(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	req := multipartRequest(t, "/api/v1/jobs",
		map[string]string{"segment_duration": "2", "overlap": "50", "spec_type": "Linear", "sample_rate": "22050"},
		map[string][2]string{"file": {"Pöllö ääni.wav", "RIFF"}})
	rec := env.do(req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decode[JobResponse](t, rec)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "Pöllö ääni.wav", resp.SourceName)
	assert.Equal(t, "linear", resp.SpecType)
	assert.Equal(t, 22050, resp.SampleRate)
	assert.Equal(t, filepath.Join(env.settings.Storage.ResultsDir, fmt.Sprint(resp.ID)), resp.ResultPath)

	job, err := env.store.Jobs.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.settings.Storage.UploadsDir, fmt.Sprintf("%d_Pollo_aani.wav", resp.ID)), job.SourcePath)
	content, err := os.ReadFile(job.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(content))

	require.Len(t, env.dispatcher.processed, 1)
	assert.Equal(t, resp.ID, env.dispatcher.processed[0].JobID)
}

func TestCreateJobCustomResultFolder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(multipartRequest(t, "/api/v1/jobs",
		map[string]string{"result_folder": "field/2024"},
		map[string][2]string{"file": {"a.wav", "x"}}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[JobResponse](t, rec)
	assert.Equal(t, filepath.Join(env.settings.Storage.ResultsDir, "field", "2024", fmt.Sprint(resp.ID)), resp.ResultPath)
}

func TestCreateJobRejectsInvalidInputBeforeStoring(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		fields map[string]string
		files  map[string][2]string
	}{
		{"missing file", map[string]string{}, nil},
		{"overlap 100", map[string]string{"overlap": "100"}, map[string][2]string{"file": {"a.wav", "x"}}},
		{"zero duration", map[string]string{"segment_duration": "0"}, map[string][2]string{"file": {"a.wav", "x"}}},
		{"not a number", map[string]string{"segment_duration": "two"}, map[string][2]string{"file": {"a.wav", "x"}}},
		{"bad channels", map[string]string{"channels": "quad"}, map[string][2]string{"file": {"a.wav", "x"}}},
		{"bad spec type", map[string]string{"spec_type": "cqt"}, map[string][2]string{"file": {"a.wav", "x"}}},
		{"escaping folder", map[string]string{"result_folder": "../outside"}, map[string][2]string{"file": {"a.wav", "x"}}},
		{"absolute folder", map[string]string{"result_folder": "/tmp"}, map[string][2]string{"file": {"a.wav", "x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)

			rec := env.do(multipartRequest(t, "/api/v1/jobs", tc.fields, tc.files))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			jobs, err := env.store.Jobs.List(context.Background(), true)
			require.NoError(t, err)
			assert.Empty(t, jobs)
			assert.NoDirExists(t, env.settings.Storage.UploadsDir)
			assert.Empty(t, env.dispatcher.processed)
		})
	}
}

func TestCreateJobQueueUnavailableFailsJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.dispatcher.err = errors.NewStd("queue is full")

	rec := env.do(multipartRequest(t, "/api/v1/jobs", nil, map[string][2]string{"file": {"a.wav", "x"}}))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	jobs, err := env.store.Jobs.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.JobFailed, jobs[0].Status)
	assert.Equal(t, "queue is full", jobs[0].Error)
}

// resultPathFailure fails SetResultPath and delegates everything else.
type resultPathFailure struct {
	repository.JobRepository
}

func (resultPathFailure) SetResultPath(context.Context, uint, string) error {
	return errors.NewStd("disk I/O error")
}

func TestCreateJobPathUpdateFailureFailsJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.store.Jobs = resultPathFailure{JobRepository: env.store.Jobs}

	rec := env.do(multipartRequest(t, "/api/v1/jobs", nil, map[string][2]string{"file": {"a.wav", "x"}}))
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	jobs, err := env.store.Jobs.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.JobFailed, jobs[0].Status)
	assert.Equal(t, "disk I/O error", jobs[0].Error)
	assert.Empty(t, env.dispatcher.processed)
}

func TestListJobsSortOrder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	first := seedJob(t, env, 0)
	second := seedJob(t, env, 0)

	ids := func(rec []JobResponse) []uint {
		out := make([]uint, 0, len(rec))
		for _, j := range rec {
			out = append(out, j.ID)
		}
		return out
	}

	rec := env.doJSON(http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{second.ID, first.ID}, ids(decode[[]JobResponse](t, rec)))

	rec = env.doJSON(http.MethodGet, "/api/v1/jobs?sort=asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint{first.ID, second.ID}, ids(decode[[]JobResponse](t, rec)))

	rec = env.doJSON(http.MethodGet, "/api/v1/jobs?sort=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobStatus(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	job := seedJob(t, env, 0)

	rec := env.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/status", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusResponse{ID: job.ID, Status: "COMPLETED", Progress: 100}, decode[StatusResponse](t, rec))

	assert.Equal(t, http.StatusNotFound, env.doJSON(http.MethodGet, "/api/v1/jobs/999/status", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.doJSON(http.MethodGet, "/api/v1/jobs/abc/status", nil).Code)
}

func TestListSegmentsPagination(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	job := seedJob(t, env, 12)

	rec := env.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/segments?page=2&per_page=5", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[SegmentPage](t, rec)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 5)
	assert.Equal(t, 5, page.Items[0].Ordinal)
	assert.InDelta(t, 5.0, page.Items[0].Start, 1e-9)
	assert.InDelta(t, 7.0, page.Items[0].End, 1e-9)
	assert.Equal(t, "00:05.000 - 00:07.000", page.Items[0].TimeSegment)
	assert.Equal(t, "disp.png", page.Items[0].DisplayImage)
	assert.Nil(t, page.Items[0].LabelID)

	rec = env.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/segments", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[SegmentPage](t, rec)
	assert.Equal(t, DefaultPerPage, page.PerPage)
	assert.Len(t, page.Items, DefaultPerPage)

	rec = env.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/segments?view=labeling", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, LabelingPerPage, decode[SegmentPage](t, rec).PerPage)

	assert.Equal(t, http.StatusBadRequest, env.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/segments?page=0", job.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, env.doJSON(http.MethodGet, "/api/v1/jobs/999/segments", nil).Code)
}

func TestDeleteJobsRemovesFilesAndRows(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	job := seedJob(t, env, 3)

	require.NoError(t, os.MkdirAll(job.ResultPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(job.ResultPath, "train.png"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(job.SourcePath), 0o755))
	require.NoError(t, os.WriteFile(job.SourcePath, []byte("RIFF"), 0o644))

	rec := env.doJSON(http.MethodDelete, "/api/v1/jobs", map[string]any{"ids": []uint{job.ID, 999}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, DeleteResponse{Deleted: 1, Missing: []uint{999}}, decode[DeleteResponse](t, rec))

	assert.NoDirExists(t, job.ResultPath)
	assert.NoFileExists(t, job.SourcePath)
	n, err := env.store.Segments.CountByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, http.StatusBadRequest, env.doJSON(http.MethodDelete, "/api/v1/jobs", map[string]any{"ids": []uint{}}).Code)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	job := seedJob(t, env, 2)

	rec := env.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/export.csv", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.CSVFileName(job))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.True(t, len(rec.Body.Bytes()) > 3 && rec.Body.String()[:3] == "\xef\xbb\xbf", "BOM prefix")
	assert.Contains(t, rec.Body.String(), export.NoLabel)

	assert.Equal(t, http.StatusNotFound, env.doJSON(http.MethodGet, "/api/v1/jobs/999/export.csv", nil).Code)
}

func TestExportArchive(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	job := seedJob(t, env, 2)

	rec := env.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/export.zip", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.ArchiveFileName(job))
	assert.Equal(t, "PK", rec.Body.String()[:2])
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.doJSON(http.MethodGet, "/health", nil).Code)

	rec := env.doJSON(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
