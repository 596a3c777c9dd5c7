// Package app assembles the long-lived services shared by the CLI commands
// from the loaded settings.
package app

import (
	"net/http"
	"os"

	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/diskmanager"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/inference"
	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/joblock"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/observability"
	"github.com/tphakala/segmentlab/internal/pipeline"
	"github.com/tphakala/segmentlab/internal/trainer"
)

// App owns the database connection and the services built on it.
type App struct {
	Settings *conf.Settings
	DB       datastore.Manager
	Store    *repository.Store
	Metrics  *observability.Metrics
	Locker   *joblock.Locker

	log logger.Logger
}

// Open prepares the storage directories, connects the database and creates
// the metrics registry and the job locker. The returned App must be closed.
func Open(settings *conf.Settings) (*App, error) {
	log := GetLogger()

	if err := ensureDirs(&settings.Storage); err != nil {
		return nil, err
	}

	db, err := datastore.Open(&settings.Database)
	if err != nil {
		return nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	locker, err := joblock.New(settings.Storage.LocksDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		Settings: settings,
		DB:       db,
		Store:    repository.NewStore(db.DB()),
		Metrics:  m,
		Locker:   locker,
		log:      log,
	}, nil
}

// Pipeline builds the workflow runner. The ffmpeg codec is resolved here, so
// commands that only read the database never require ffmpeg.
func (a *App) Pipeline(observers ...jobstate.Observer) (*pipeline.Pipeline, error) {
	s := a.Settings

	ffmpeg, err := codec.NewFFmpeg(&s.Codec, logger.Global().Module("codec"))
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Deps{
		Store:     a.Store,
		Codec:     ffmpeg,
		Trainer:   trainer.NewClient(s.Training.ServiceURL, &http.Client{}, s.Training.PollInterval),
		Locker:    a.Locker,
		Guard:     diskmanager.NewGuard(s.Storage.DataDir, s.Storage.MinFreePercent, a.Metrics.Disk),
		Metrics:   a.Metrics.Pipeline,
		Observers: observers,
		Settings: pipeline.Settings{
			ResultsDir:      s.Storage.ResultsDir,
			TrainingRunsDir: s.Storage.TrainingRunsDir,
			Epochs:          s.Training.Epochs,
			ImageSize:       s.Training.ImageSize,
			DefaultModel:    s.Training.DefaultModel,
			MaxSegments:     s.Segmentation.MaxSegments,
			Inference: inference.Options{
				Threads:         s.Inference.Threads,
				ONNXRuntimePath: s.Inference.ONNXRuntimePath,
				Logger:          logger.Global().Module("inference"),
			},
		},
		Logger: pipeline.GetLogger(),
	}), nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if err := a.DB.Close(); err != nil {
		a.log.Warn("closing database failed", logger.Error(err))
		return err
	}
	return nil
}

func ensureDirs(s *conf.StorageSettings) error {
	for _, dir := range []string{s.DataDir, s.UploadsDir, s.ResultsDir, s.TempModelsDir, s.TrainingRunsDir, s.LocksDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("app").
				Category(errors.CategoryFileIO).
				Context("directory", dir).
				Build()
		}
	}
	return nil
}
