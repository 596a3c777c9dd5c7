package api

import (
	"context"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/pipeline"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

func (c *Controller) initJobRoutes(g *echo.Group) {
	jobs := g.Group("/jobs")
	jobs.POST("", c.CreateJob)
	jobs.GET("", c.ListJobs)
	jobs.DELETE("", c.DeleteJobs)
	jobs.GET("/:id", c.GetJob)
	jobs.GET("/:id/status", c.GetJobStatus)
	jobs.GET("/:id/segments", c.ListSegments)
	jobs.POST("/:id/autolabel", c.AutoLabelJob)
	jobs.GET("/:id/export.csv", c.ExportCSV)
	jobs.GET("/:id/export.zip", c.ExportArchive)

	g.POST("/segments/:id/label", c.SetSegmentLabel)
}

// jobForm is the parsed upload form. Empty fields take the configured defaults.
type jobForm struct {
	SegmentDuration float64
	Overlap         float64
	SampleRate      int
	Channels        string
	SpecType        string
	ResultFolder    string
}

func (c *Controller) parseJobForm(ctx echo.Context) (jobForm, error) {
	d := c.settings.Segmentation
	form := jobForm{
		SegmentDuration: d.SegmentDuration,
		Overlap:         d.Overlap,
		SampleRate:      d.SampleRate,
		Channels:        d.Channels,
		SpecType:        d.SpecType,
		ResultFolder:    ctx.FormValue("result_folder"),
	}

	var err error
	if v := ctx.FormValue("segment_duration"); v != "" {
		if form.SegmentDuration, err = strconv.ParseFloat(v, 64); err != nil {
			return form, errors.ValidationError(fmt.Sprintf("segment_duration %q is not a number", v))
		}
	}
	if v := ctx.FormValue("overlap"); v != "" {
		if form.Overlap, err = strconv.ParseFloat(v, 64); err != nil {
			return form, errors.ValidationError(fmt.Sprintf("overlap %q is not a number", v))
		}
	}
	if v := ctx.FormValue("sample_rate"); v != "" {
		if form.SampleRate, err = strconv.Atoi(v); err != nil {
			return form, errors.ValidationError(fmt.Sprintf("sample_rate %q is not an integer", v))
		}
	}
	if v := ctx.FormValue("channels"); v != "" {
		form.Channels = strings.ToLower(v)
	}
	if v := ctx.FormValue("spec_type"); v != "" {
		form.SpecType = strings.ToLower(v)
	}

	if err := segmentation.ParamsFromPercent(form.SegmentDuration, form.Overlap).Validate(); err != nil {
		return form, err
	}
	render := codec.RenderParams{SampleRate: form.SampleRate, Channels: form.Channels, SpecType: form.SpecType}
	if err := render.Validate(); err != nil {
		return form, err
	}
	return form, nil
}

// CreateJob handles POST /api/v1/jobs. The recording is stored as
// <id>_<sanitized name> in the uploads directory and a process_audio task
// is queued. Parameters are validated before anything is stored.
func (c *Controller) CreateJob(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return c.badRequest(ctx, "multipart field 'file' is required")
	}
	form, err := c.parseJobForm(ctx)
	if err != nil {
		return c.fail(ctx, err, "invalid segmentation parameters")
	}
	resultRoot, err := resolveResultFolder(c.settings.Storage.ResultsDir, form.ResultFolder)
	if err != nil {
		return c.fail(ctx, err, "invalid result folder")
	}

	reqCtx := ctx.Request().Context()
	job := &entities.AudioJob{
		SourceName:      file.Filename,
		SegmentDuration: form.SegmentDuration,
		Overlap:         form.Overlap,
		SampleRate:      form.SampleRate,
		Channels:        form.Channels,
		SpecType:        form.SpecType,
		Status:          entities.JobPending,
	}
	if err := c.store.Jobs.Create(reqCtx, job); err != nil {
		return c.fail(ctx, err, "failed to create job")
	}
	log := c.log.With(logger.Uint64("job_id", uint64(job.ID)))

	sourcePath := filepath.Join(c.settings.Storage.UploadsDir, fmt.Sprintf("%d_%s", job.ID, SanitizeFilename(file.Filename)))
	if err := saveUpload(file, sourcePath); err != nil {
		c.abandonJob(reqCtx, job.ID, err)
		return c.fail(ctx, err, "failed to store upload")
	}
	job.SourcePath = sourcePath
	job.ResultPath = filepath.Join(resultRoot, strconv.FormatUint(uint64(job.ID), 10))
	if err := c.store.Jobs.SetSourcePath(reqCtx, job.ID, job.SourcePath); err != nil {
		c.abandonJob(reqCtx, job.ID, err)
		return c.fail(ctx, err, "failed to update job")
	}
	if err := c.store.Jobs.SetResultPath(reqCtx, job.ID, job.ResultPath); err != nil {
		c.abandonJob(reqCtx, job.ID, err)
		return c.fail(ctx, err, "failed to update job")
	}

	if err := c.dispatcher.ProcessAudio(pipeline.ProcessAudioPayload{JobID: job.ID}); err != nil {
		c.abandonJob(reqCtx, job.ID, err)
		return c.HandleError(ctx, err, "processing queue is unavailable", http.StatusServiceUnavailable)
	}

	log.Info("audio job queued",
		logger.String("source", job.SourceName),
		logger.Float64("segment_duration", job.SegmentDuration),
		logger.Float64("overlap", job.Overlap))
	return ctx.JSON(http.StatusAccepted, newJobResponse(job))
}

// abandonJob marks a job that never reached the queue as failed.
func (c *Controller) abandonJob(ctx context.Context, id uint, cause error) {
	if err := c.store.Jobs.SetState(ctx, id, entities.JobFailed, 0, cause.Error()); err != nil {
		c.log.Warn("failed to mark job failed", logger.Uint64("job_id", uint64(id)), logger.Error(err))
	}
}

func saveUpload(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return uploadError(err, dst)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return uploadError(err, dst)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return uploadError(err, dst)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return uploadError(err, dst)
	}
	if err := out.Close(); err != nil {
		return uploadError(err, dst)
	}
	return nil
}

func uploadError(err error, path string) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryFileIO).
		Context("operation", "save-upload").
		FileContext(path).
		Build()
}

// ListJobs handles GET /api/v1/jobs?sort=asc|desc, newest first by default.
func (c *Controller) ListJobs(ctx echo.Context) error {
	var ascending bool
	switch strings.ToLower(ctx.QueryParam("sort")) {
	case "", "desc":
	case "asc":
		ascending = true
	default:
		return c.badRequest(ctx, "sort must be asc or desc")
	}

	jobs, err := c.store.Jobs.List(ctx.Request().Context(), ascending)
	if err != nil {
		return c.fail(ctx, err, "failed to list jobs")
	}
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newJobResponse(j))
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetJob handles GET /api/v1/jobs/:id.
func (c *Controller) GetJob(ctx echo.Context) error {
	job, err := c.jobParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "job not available")
	}
	return ctx.JSON(http.StatusOK, newJobResponse(job))
}

// GetJobStatus handles GET /api/v1/jobs/:id/status.
func (c *Controller) GetJobStatus(ctx echo.Context) error {
	job, err := c.jobParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "job not available")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{
		ID:       job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Error:    job.Error,
	})
}

func (c *Controller) jobParam(ctx echo.Context) (*entities.AudioJob, error) {
	id, err := idParam(ctx, "id")
	if err != nil {
		return nil, err
	}
	return c.store.Jobs.GetByID(ctx.Request().Context(), id)
}

// ListSegments handles GET /api/v1/jobs/:id/segments?page=&per_page=.
// view=labeling raises the default page size.
func (c *Controller) ListSegments(ctx echo.Context) error {
	job, err := c.jobParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "job not available")
	}

	perPage := DefaultPerPage
	if ctx.QueryParam("view") == "labeling" {
		perPage = LabelingPerPage
	}
	page := 1
	if v := ctx.QueryParam("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return c.badRequest(ctx, "page must be a positive integer")
		}
	}
	if v := ctx.QueryParam("per_page"); v != "" {
		if perPage, err = strconv.Atoi(v); err != nil || perPage < 1 || perPage > MaxPerPage {
			return c.badRequest(ctx, fmt.Sprintf("per_page must be between 1 and %d", MaxPerPage))
		}
	}

	segments, total, err := c.store.Segments.Page(ctx.Request().Context(), job.ID, (page-1)*perPage, perPage)
	if err != nil {
		return c.fail(ctx, err, "failed to list segments")
	}
	items := make([]SegmentResponse, 0, len(segments))
	for _, s := range segments {
		items = append(items, newSegmentResponse(job, s))
	}
	return ctx.JSON(http.StatusOK, SegmentPage{
		JobID:      job.ID,
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	})
}

// DeleteJobs handles DELETE /api/v1/jobs with {"ids": [..]}. Each job is
// deleted under its lock so a running task never sees its files vanish.
func (c *Controller) DeleteJobs(ctx echo.Context) error {
	ids, err := bindIDs(ctx)
	if err != nil {
		return c.fail(ctx, err, "invalid delete request")
	}

	reqCtx := ctx.Request().Context()
	resp := DeleteResponse{}
	for _, id := range ids {
		n, err := c.deleteJob(reqCtx, id)
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			resp.Missing = append(resp.Missing, id)
		case err != nil:
			return c.fail(ctx, err, fmt.Sprintf("failed to delete job %d", id))
		default:
			resp.Deleted += n
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) deleteJob(ctx context.Context, id uint) (int64, error) {
	release, err := c.lock(ctx, pipeline.LockAudioJob, id)
	if err != nil {
		return 0, err
	}
	defer func() { _ = release() }()

	job, err := c.store.Jobs.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if job.ResultPath != "" {
		if err := os.RemoveAll(job.ResultPath); err != nil {
			return 0, removeError(err, job.ResultPath)
		}
	}
	if job.SourcePath != "" {
		if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
			return 0, removeError(err, job.SourcePath)
		}
	}
	n, err := c.store.Jobs.Delete(ctx, []uint{id})
	if err != nil {
		return 0, err
	}
	c.log.Info("audio job deleted", logger.Uint64("job_id", uint64(id)))
	return n, nil
}

func removeError(err error, path string) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryFileIO).
		Context("operation", "delete").
		FileContext(path).
		Build()
}
