package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/pipeline"
)

func (c *Controller) initTrainingRoutes(g *echo.Group) {
	training := g.Group("/training")
	training.POST("", c.StartTraining)
	training.GET("", c.ListRuns)
	training.DELETE("", c.DeleteRuns)
	training.GET("/:id/status", c.GetRunStatus)
	training.GET("/:id/report", c.GetRunReport)
	training.GET("/:id/report/:file", c.GetReportImage)
}

type startTrainingRequest struct {
	JobIDs    []uint `json:"job_ids"`
	ModelName string `json:"model_name"`
}

// StartTraining handles POST /api/v1/training. The run is created PENDING
// before the train_model task is queued so its ID can be returned.
func (c *Controller) StartTraining(ctx echo.Context) error {
	var req startTrainingRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid training request")
	}
	if len(req.JobIDs) == 0 {
		return c.badRequest(ctx, "job_ids must not be empty")
	}

	reqCtx := ctx.Request().Context()
	for _, id := range req.JobIDs {
		if _, err := c.store.Jobs.GetByID(reqCtx, id); err != nil {
			return c.fail(ctx, err, fmt.Sprintf("job %d not available", id))
		}
	}

	payload := pipeline.TrainModelPayload{JobIDs: req.JobIDs, ModelName: strings.TrimSpace(req.ModelName)}
	run, err := c.dispatcher.CreateRun(reqCtx, payload)
	if err != nil {
		return c.fail(ctx, err, "failed to create training run")
	}
	payload.RunID = run.ID
	if err := c.dispatcher.TrainModel(payload); err != nil {
		if serr := c.store.Runs.SetState(reqCtx, run.ID, entities.RunFailure, 0, err.Error()); serr != nil {
			c.log.Warn("failed to mark run failed", logger.Uint64("run_id", uint64(run.ID)), logger.Error(serr))
		}
		return c.HandleError(ctx, err, "processing queue is unavailable", http.StatusServiceUnavailable)
	}

	c.log.Info("training run queued",
		logger.Uint64("run_id", uint64(run.ID)),
		logger.Int("jobs", len(req.JobIDs)),
		logger.String("model", run.Params.ModelName))
	return ctx.JSON(http.StatusAccepted, newRunResponse(run))
}

// ListRuns handles GET /api/v1/training, newest first.
func (c *Controller) ListRuns(ctx echo.Context) error {
	runs, err := c.store.Runs.List(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "failed to list training runs")
	}
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, newRunResponse(r))
	}
	return ctx.JSON(http.StatusOK, out)
}

func (c *Controller) runParam(ctx echo.Context) (*entities.TrainingRun, error) {
	id, err := idParam(ctx, "id")
	if err != nil {
		return nil, err
	}
	return c.store.Runs.GetByID(ctx.Request().Context(), id)
}

// GetRunStatus handles GET /api/v1/training/:id/status.
func (c *Controller) GetRunStatus(ctx echo.Context) error {
	run, err := c.runParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "training run not available")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{
		ID:       run.ID,
		Status:   string(run.Status),
		Progress: run.Progress,
		Error:    run.Error,
	})
}

// reportDir returns the results directory of a finished run, or an error
// when the run has no report.
func (c *Controller) reportDir(run *entities.TrainingRun) (string, error) {
	if run.Status != entities.RunSuccess || run.Metrics == nil || run.ResultsPath == "" {
		return "", repository.ErrTrainingRunNotFound
	}
	return filepath.Join(c.settings.Storage.TrainingRunsDir, run.ResultsPath), nil
}

// GetRunReport handles GET /api/v1/training/:id/report. Only successful
// runs with stored metrics have a report.
func (c *Controller) GetRunReport(ctx echo.Context) error {
	run, err := c.runParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "training run not available")
	}
	dir, err := c.reportDir(run)
	if err != nil {
		return c.HandleError(ctx, err, "no report for this training run", http.StatusNotFound)
	}

	images, err := reportImages(dir)
	if err != nil {
		return c.fail(ctx, err, "failed to read training results")
	}
	return ctx.JSON(http.StatusOK, ReportResponse{
		ID:          run.ID,
		ModelName:   run.Params.ModelName,
		Metrics:     run.Metrics,
		ResultsPath: run.ResultsPath,
		Images:      images,
	})
}

// reportImages lists the plot files written by the trainer.
func reportImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	images := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			images = append(images, e.Name())
		}
	}
	slices.Sort(images)
	return images, nil
}

// GetReportImage handles GET /api/v1/training/:id/report/:file.
func (c *Controller) GetReportImage(ctx echo.Context) error {
	run, err := c.runParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "training run not available")
	}
	dir, err := c.reportDir(run)
	if err != nil {
		return c.HandleError(ctx, err, "no report for this training run", http.StatusNotFound)
	}
	name := ctx.Param("file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return c.badRequest(ctx, "invalid report file name")
	}
	return ctx.File(filepath.Join(dir, name))
}

// DeleteRuns handles DELETE /api/v1/training with {"ids": [..]}, removing
// each run's directory and row.
func (c *Controller) DeleteRuns(ctx echo.Context) error {
	ids, err := bindIDs(ctx)
	if err != nil {
		return c.fail(ctx, err, "invalid delete request")
	}

	reqCtx := ctx.Request().Context()
	resp := DeleteResponse{}
	for _, id := range ids {
		n, err := c.deleteRun(reqCtx, id)
		switch {
		case errors.Is(err, repository.ErrTrainingRunNotFound):
			resp.Missing = append(resp.Missing, id)
		case err != nil:
			return c.fail(ctx, err, fmt.Sprintf("failed to delete training run %d", id))
		default:
			resp.Deleted += n
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) deleteRun(ctx context.Context, id uint) (int64, error) {
	release, err := c.lock(ctx, pipeline.LockTrainingRun, id)
	if err != nil {
		return 0, err
	}
	defer func() { _ = release() }()

	if _, err := c.store.Runs.GetByID(ctx, id); err != nil {
		return 0, err
	}
	dir := pipeline.RunDir(c.settings.Storage.TrainingRunsDir, id)
	if err := os.RemoveAll(dir); err != nil {
		return 0, removeError(err, dir)
	}
	n, err := c.store.Runs.Delete(ctx, []uint{id})
	if err != nil {
		return 0, err
	}
	c.log.Info("training run deleted", logger.Uint64("run_id", uint64(id)))
	return n, nil
}
