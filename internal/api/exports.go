package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/segmentlab/internal/export"
	"github.com/tphakala/segmentlab/internal/logger"
)

func attachment(ctx echo.Context, contentType, name string) {
	h := ctx.Response().Header()
	h.Set(echo.HeaderContentType, contentType)
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
}

// ExportCSV handles GET /api/v1/jobs/:id/export.csv.
func (c *Controller) ExportCSV(ctx echo.Context) error {
	job, err := c.jobParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "job not available")
	}
	segments, err := c.store.Segments.ListByJob(ctx.Request().Context(), job.ID)
	if err != nil {
		return c.fail(ctx, err, "failed to load segments")
	}

	attachment(ctx, "text/csv; charset=utf-8", export.CSVFileName(job))
	ctx.Response().WriteHeader(http.StatusOK)
	return export.WriteLabelCSV(ctx.Response(), segments)
}

// ExportArchive handles GET /api/v1/jobs/:id/export.zip. The archive is
// streamed; once the headers are out an error can only be logged.
func (c *Controller) ExportArchive(ctx echo.Context) error {
	job, err := c.jobParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "job not available")
	}
	reqCtx := ctx.Request().Context()
	segments, err := c.store.Segments.ListByJob(reqCtx, job.ID)
	if err != nil {
		return c.fail(ctx, err, "failed to load segments")
	}

	attachment(ctx, "application/zip", export.ArchiveFileName(job))
	ctx.Response().WriteHeader(http.StatusOK)
	stats, err := export.WriteDatasetArchive(reqCtx, ctx.Response(), job, segments)
	if err != nil {
		c.log.Error("dataset export failed",
			logger.Uint64("job_id", uint64(job.ID)),
			logger.Error(err))
		return nil
	}
	c.log.Info("dataset exported",
		logger.Uint64("job_id", uint64(job.ID)),
		logger.Int("rows", stats.Rows),
		logger.Int("skipped", stats.Skipped))
	return nil
}
