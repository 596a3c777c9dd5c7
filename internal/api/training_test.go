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
	"github.com/tphakala/segmentlab/internal/pipeline"
)

func TestStartTrainingValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.doJSON(http.MethodPost, "/api/v1/training", map[string]any{"job_ids": []uint{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(http.MethodPost, "/api/v1/training", map[string]any{"job_ids": []uint{42}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	runs, err := env.store.Runs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Empty(t, env.dispatcher.trained)
}

func TestTrainingRunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	job := seedJob(t, env, 2)

	rec := env.doJSON(http.MethodPost, "/api/v1/training", map[string]any{"job_ids": []uint{job.ID}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	run := decode[RunResponse](t, rec)
	assert.Equal(t, "PENDING", run.Status)
	assert.Equal(t, "yolov8n-cls.pt", run.Params.ModelName)
	require.Len(t, env.dispatcher.trained, 1)
	assert.Equal(t, pipeline.TrainModelPayload{JobIDs: []uint{job.ID}, RunID: run.ID}, env.dispatcher.trained[0])

	statusPath := fmt.Sprintf("/api/v1/training/%d/status", run.ID)
	reportPath := fmt.Sprintf("/api/v1/training/%d/report", run.ID)

	rec = env.doJSON(http.MethodGet, statusPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decode[StatusResponse](t, rec).Status)
	assert.Equal(t, http.StatusNotFound, env.doJSON(http.MethodGet, reportPath, nil).Code, "no report before success")

	// Simulate the workflow finishing.
	acc := 0.75
	metrics := &entities.TrainingMetrics{
		AccuracyTop1: &acc,
		PerClass:     []entities.ClassMetrics{{Name: "bird", Precision: 0.5, Recall: 1, F1: 0.6667}},
	}
	require.NoError(t, env.store.Runs.SaveResults(ctx, run.ID, metrics, pipeline.ResultsRelPath(run.ID)))
	require.NoError(t, env.store.Runs.SetState(ctx, run.ID, entities.RunSuccess, 100, ""))
	resultsDir := filepath.Join(env.settings.Storage.TrainingRunsDir, pipeline.ResultsRelPath(run.ID))
	require.NoError(t, os.MkdirAll(resultsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "confusion_matrix.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, "results.csv"), []byte("csv"), 0o644))

	rec = env.doJSON(http.MethodGet, reportPath, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[ReportResponse](t, rec)
	require.NotNil(t, report.Metrics)
	require.NotNil(t, report.Metrics.AccuracyTop1)
	assert.InDelta(t, 0.75, *report.Metrics.AccuracyTop1, 1e-9)
	assert.Equal(t, []string{"confusion_matrix.png"}, report.Images)

	rec = env.doJSON(http.MethodGet, reportPath+"/confusion_matrix.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	rec = env.doJSON(http.MethodGet, "/api/v1/training", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RunResponse](t, rec), 1)

	rec = env.doJSON(http.MethodDelete, "/api/v1/training", map[string]any{"ids": []uint{run.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decode[DeleteResponse](t, rec).Deleted)
	assert.NoDirExists(t, pipeline.RunDir(env.settings.Storage.TrainingRunsDir, run.ID))
	assert.Equal(t, http.StatusNotFound, env.doJSON(http.MethodGet, statusPath, nil).Code)
}

func TestStartTrainingQueueUnavailableFailsRun(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	job := seedJob(t, env, 1)
	env.dispatcher.err = fmt.Errorf("queue stopped")

	rec := env.doJSON(http.MethodPost, "/api/v1/training", map[string]any{"job_ids": []uint{job.ID}, "model_name": "custom.pt"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	runs, err := env.store.Runs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, entities.RunFailure, runs[0].Status)
	assert.Equal(t, "custom.pt", runs[0].Params.ModelName)
}
