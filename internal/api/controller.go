package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/joblock"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/pipeline"
)

// Dispatcher queues workflows. *pipeline.Dispatcher implements it.
type Dispatcher interface {
	ProcessAudio(payload pipeline.ProcessAudioPayload) error
	TrainModel(payload pipeline.TrainModelPayload) error
	AutoLabel(payload pipeline.AutoLabelPayload) error
	CreateRun(ctx context.Context, payload pipeline.TrainModelPayload) (*entities.TrainingRun, error)
}

// Controller holds the route handlers.
type Controller struct {
	store      *repository.Store
	dispatcher Dispatcher
	locker     *joblock.Locker
	settings   *conf.Settings
	log        logger.Logger
}

func newController(s *Server) *Controller {
	return &Controller{
		store:      s.store,
		dispatcher: s.dispatcher,
		locker:     s.locker,
		settings:   s.settings,
		log:        s.log,
	}
}

func (c *Controller) initRoutes(g *echo.Group) {
	c.initJobRoutes(g)
	c.initTrainingRoutes(g)
	c.initLabelRoutes(g)
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err and writes an ErrorResponse. Client errors are
// logged at DEBUG; server errors carry the correlation ID into the log.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Error = message
	}

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Debug("API error", fields...)
	}
	return ctx.JSON(code, resp)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrJobNotFound),
		errors.Is(err, repository.ErrSegmentNotFound),
		errors.Is(err, repository.ErrLabelNotFound),
		errors.Is(err, repository.ErrTrainingRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, errors.ErrInvalidParameter),
		errors.Is(err, errors.ErrUnsupportedModelFormat),
		errors.Is(err, repository.ErrInvalidInput),
		errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, joblock.ErrLocked):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) fail(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusFor(err))
}

func (c *Controller) badRequest(ctx echo.Context, message string) error {
	return c.HandleError(ctx, nil, message, http.StatusBadRequest)
}

// idParam parses a positive numeric path parameter.
func idParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || v == 0 {
		return 0, errors.ValidationError("invalid " + name + " " + strconv.Quote(ctx.Param(name)))
	}
	return uint(v), nil
}

// idsRequest is the body of bulk delete requests.
type idsRequest struct {
	IDs []uint `json:"ids"`
}

func bindIDs(ctx echo.Context) ([]uint, error) {
	var req idsRequest
	if err := ctx.Bind(&req); err != nil {
		return nil, errors.ValidationError("request body must be {\"ids\": [..]}")
	}
	if len(req.IDs) == 0 {
		return nil, errors.ValidationError("ids must not be empty")
	}
	return req.IDs, nil
}

// lock takes a per-job lock for the duration of a request.
func (c *Controller) lock(ctx context.Context, kind string, id uint) (joblock.Release, error) {
	if c.locker == nil {
		return func() error { return nil }, nil
	}
	return c.locker.Lock(ctx, kind, id)
}
