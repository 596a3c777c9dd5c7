package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

func (c *Controller) initLabelRoutes(g *echo.Group) {
	labels := g.Group("/labels")
	labels.GET("", c.ListLabels)
	labels.POST("", c.CreateLabel)
	labels.DELETE("/:id", c.DeleteLabel)
}

// ListLabels handles GET /api/v1/labels, sorted by name.
func (c *Controller) ListLabels(ctx echo.Context) error {
	labels, err := c.store.Labels.List(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "failed to list labels")
	}
	out := make([]LabelResponse, 0, len(labels))
	for _, l := range labels {
		out = append(out, newLabelResponse(l))
	}
	return ctx.JSON(http.StatusOK, out)
}

type createLabelRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
}

// CreateLabel handles POST /api/v1/labels. An empty name is rejected with
// 400 and a taken name with 409.
func (c *Controller) CreateLabel(ctx echo.Context) error {
	var req createLabelRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid label request")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.badRequest(ctx, "label name must not be empty")
	}

	label, err := c.store.Labels.Create(ctx.Request().Context(), name, strings.TrimSpace(req.Description))
	if err != nil {
		return c.fail(ctx, err, "failed to create label")
	}
	c.log.Info("label created", logger.String("label", label.Name))
	return ctx.JSON(http.StatusCreated, newLabelResponse(label))
}

// DeleteLabel handles DELETE /api/v1/labels/:id. Segments carrying the
// label become unlabeled.
func (c *Controller) DeleteLabel(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.fail(ctx, err, "invalid label id")
	}
	if err := c.store.Labels.Delete(ctx.Request().Context(), id); err != nil {
		return c.fail(ctx, err, "failed to delete label")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// parseLabelID reads {"label_id": <int>|null}. A missing field, a
// non-integer or a non-positive value is rejected.
func parseLabelID(body io.Reader) (*uint, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errors.ValidationError("request body must be a JSON object")
	}
	v, ok := raw["label_id"]
	if !ok {
		return nil, errors.ValidationError("label_id is required")
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return nil, errors.ValidationError("label_id must be an integer or null")
	}
	id, err := n.Int64()
	if err != nil || id <= 0 || id > int64(^uint32(0)) {
		return nil, errors.ValidationError("label_id must be a positive integer or null")
	}
	u := uint(id)
	return &u, nil
}

// SetSegmentLabel handles POST /api/v1/segments/:id/label.
func (c *Controller) SetSegmentLabel(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.fail(ctx, err, "invalid segment id")
	}
	labelID, err := parseLabelID(ctx.Request().Body)
	if err != nil {
		return c.fail(ctx, err, "invalid label assignment")
	}

	reqCtx := ctx.Request().Context()
	if labelID != nil {
		if _, err := c.store.Labels.GetByID(reqCtx, *labelID); err != nil {
			return c.fail(ctx, err, "label not available")
		}
	}
	if err := c.store.Segments.SetLabel(reqCtx, id, labelID); err != nil {
		return c.fail(ctx, err, "failed to label segment")
	}

	segment, err := c.store.Segments.GetByID(reqCtx, id)
	if err != nil {
		return c.fail(ctx, err, "segment not available")
	}
	job, err := c.store.Jobs.GetByID(reqCtx, segment.JobID)
	if err != nil {
		return c.fail(ctx, err, "job not available")
	}
	return ctx.JSON(http.StatusOK, newSegmentResponse(job, segment))
}
