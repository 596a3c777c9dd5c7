// Package pipeline implements the three asynchronous workflows: processing
// an uploaded recording into segments, training a classifier on labeled
// segments and auto-labeling a job's segments with an uploaded model.
//
// Every workflow receives its collaborators through Deps; nothing is global.
// Workflows never cancel themselves and never retry. A failure marks the
// owning job or run failed and is returned to the caller unchanged.
package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/dataset"
	"github.com/tphakala/segmentlab/internal/diskmanager"
	"github.com/tphakala/segmentlab/internal/inference"
	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/joblock"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/observability/metrics"
	"github.com/tphakala/segmentlab/internal/trainer"
)

// Task kinds used on the queue and in metrics.
const (
	TaskProcessAudio = "process_audio"
	TaskTrainModel   = "train_model"
	TaskAutoLabel    = "auto_label"
)

// Lock kinds for per-job advisory locks.
const (
	LockAudioJob    = "audio"
	LockTrainingRun = "training"
)

// Training run directory layout below Settings.TrainingRunsDir/<run id>.
const (
	DatasetDirName = "dataset"
	ResultsDirName = "train_results"
)

// ProcessAudioPayload is the process_audio task message.
type ProcessAudioPayload struct {
	JobID uint `json:"job_id"`
}

// TrainModelPayload is the train_model task message. A zero RunID makes the
// workflow create the run itself.
type TrainModelPayload struct {
	JobIDs    []uint `json:"job_ids"`
	RunID     uint   `json:"run_id"`
	ModelName string `json:"model_name"`
}

// AutoLabelPayload is the auto_label task message.
type AutoLabelPayload struct {
	JobID     uint   `json:"job_id"`
	ModelPath string `json:"model_path"`
}

// LoaderFunc opens a classifier. inference.Load is the default.
type LoaderFunc func(modelPath string, opts inference.Options) (inference.Classifier, error)

// Settings are the workflow tunables taken from configuration.
type Settings struct {
	ResultsDir      string
	TrainingRunsDir string
	Epochs          int
	ImageSize       int
	DefaultModel    string
	MaxSegments     int // per job, 0 for no limit
	Inference       inference.Options
	// Seed makes dataset partitioning reproducible; 0 uses a time seed.
	Seed uint64
}

// Deps are the collaborators of every workflow. Store, Codec and Trainer
// are required for the workflows that use them; the rest may be nil.
type Deps struct {
	Store     *repository.Store
	Codec     codec.Service
	Trainer   trainer.Trainable
	Load      LoaderFunc
	Locker    *joblock.Locker
	Guard     *diskmanager.Guard
	Metrics   *metrics.PipelineMetrics
	Observers []jobstate.Observer
	Settings  Settings
	Logger    logger.Logger
}

// Pipeline runs the workflows over one set of Deps.
type Pipeline struct {
	deps Deps
	log  logger.Logger
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	if deps.Load == nil {
		deps.Load = inference.Load
	}
	if deps.Settings.DefaultModel == "" {
		deps.Settings.DefaultModel = "yolov8n-cls.pt"
	}
	log := deps.Logger
	if log == nil {
		log = GetLogger()
	}
	return &Pipeline{deps: deps, log: log}
}

// observers returns the configured observers plus the metrics observer.
func (p *Pipeline) observers() []jobstate.Observer {
	obs := append([]jobstate.Observer(nil), p.deps.Observers...)
	if m := p.deps.Metrics; m != nil {
		obs = append(obs, func(s jobstate.Snapshot) {
			m.Commit(string(s.Kind), s.Status)
		})
	}
	return obs
}

func (p *Pipeline) rand() *rand.Rand {
	seed := p.deps.Settings.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return dataset.NewRand(seed)
}

// lock takes the advisory lock of one job when a Locker is configured.
func (p *Pipeline) lock(ctx context.Context, kind string, id uint) (joblock.Release, error) {
	if p.deps.Locker == nil {
		return func() error { return nil }, nil
	}
	return p.deps.Locker.Lock(ctx, kind, id)
}
