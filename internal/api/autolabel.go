package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/segmentlab/internal/inference"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/pipeline"
)

// AutoLabelResponse acknowledges a queued auto-label task.
type AutoLabelResponse struct {
	JobID   uint   `json:"job_id"`
	Model   string `json:"model"`
	Variant string `json:"variant"`
}

// AutoLabelJob handles POST /api/v1/jobs/:id/autolabel. The multipart
// field "model" carries a .tflite or .onnx file; "class_names" optionally
// carries the manifest an .onnx model needs. Both are staged in the temp
// models directory and removed by the task.
func (c *Controller) AutoLabelJob(ctx echo.Context) error {
	job, err := c.jobParam(ctx)
	if err != nil {
		return c.fail(ctx, err, "job not available")
	}
	modelFile, err := ctx.FormFile("model")
	if err != nil {
		return c.badRequest(ctx, "multipart field 'model' is required")
	}
	variant, err := inference.DetectVariant(modelFile.Filename)
	if err != nil {
		return c.fail(ctx, err, "unsupported model file")
	}

	model, err := modelFile.Open()
	if err != nil {
		return c.fail(ctx, err, "failed to read model upload")
	}
	defer func() { _ = model.Close() }()

	var manifest io.Reader
	if mf, err := ctx.FormFile("class_names"); err == nil {
		f, err := mf.Open()
		if err != nil {
			return c.fail(ctx, err, "failed to read class names upload")
		}
		defer func() { _ = f.Close() }()
		manifest = f
	}

	modelPath, err := pipeline.StageModel(c.settings.Storage.TempModelsDir, job.ID, modelFile.Filename, model, manifest)
	if err != nil {
		return c.fail(ctx, err, "failed to stage model")
	}
	if err := c.dispatcher.AutoLabel(pipeline.AutoLabelPayload{JobID: job.ID, ModelPath: modelPath}); err != nil {
		return c.HandleError(ctx, err, "processing queue is unavailable", http.StatusServiceUnavailable)
	}

	c.log.Info("auto-label queued",
		logger.Uint64("job_id", uint64(job.ID)),
		logger.String("variant", string(variant)))
	return ctx.JSON(http.StatusAccepted, AutoLabelResponse{
		JobID:   job.ID,
		Model:   modelFile.Filename,
		Variant: string(variant),
	})
}
