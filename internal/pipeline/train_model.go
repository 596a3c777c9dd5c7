package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/dataset"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/trainer"
)

// RunMachine returns the state machine of a training run committing through runs.
func RunMachine(runs repository.TrainingRunRepository, id uint, observers ...jobstate.Observer) *jobstate.Machine {
	return jobstate.New(jobstate.KindTraining, id, jobstate.CommitterFunc(
		func(ctx context.Context, status string, progress int, errMsg string) error {
			return runs.SetState(ctx, id, entities.RunStatus(status), progress, errMsg)
		}), observers...)
}

// RunDir returns the directory of run id below root.
func RunDir(root string, id uint) string {
	return filepath.Join(root, strconv.FormatUint(uint64(id), 10))
}

// ResultsRelPath is the stored results location of run id, relative to the
// training runs directory.
func ResultsRelPath(id uint) string {
	return filepath.Join(strconv.FormatUint(uint64(id), 10), ResultsDirName)
}

// CreateRun inserts a PENDING run for payload and returns it.
func (p *Pipeline) CreateRun(ctx context.Context, payload TrainModelPayload) (*entities.TrainingRun, error) {
	if len(payload.JobIDs) == 0 {
		return nil, errors.ValidationError("at least one job id is required")
	}
	model := payload.ModelName
	if model == "" {
		model = p.deps.Settings.DefaultModel
	}
	run := &entities.TrainingRun{
		Status: entities.RunPending,
		Params: entities.TrainingParams{
			ModelName: model,
			JobIDs:    payload.JobIDs,
			Epochs:    p.deps.Settings.Epochs,
			ImageSize: p.deps.Settings.ImageSize,
		},
	}
	if err := p.deps.Store.Runs.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// TrainModel assembles a dataset from the labeled segments of the requested
// jobs, trains on it and stores the evaluation metrics. Without any labeled
// segment the run fails with ErrNoTrainingData before training starts.
func (p *Pipeline) TrainModel(ctx context.Context, payload TrainModelPayload) error {
	runs := p.deps.Store.Runs

	runID := payload.RunID
	if runID == 0 {
		created, err := p.CreateRun(ctx, payload)
		if err != nil {
			return err
		}
		runID = created.ID
	}
	log := p.log.With(logger.Uint64("run_id", uint64(runID)))

	// the status is read under the lock so a duplicate task sees the
	// outcome of the one before it
	release, err := p.lock(ctx, LockTrainingRun, runID)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	run, err := runs.GetByID(ctx, runID)
	if errors.Is(err, repository.ErrTrainingRunNotFound) {
		log.Warn("training run not found, nothing to train")
		return nil
	}
	if err != nil {
		return err
	}
	if run.Status != entities.RunPending {
		log.Warn("training run is not pending, skipping", logger.String("status", string(run.Status)))
		return nil
	}

	jobIDs := payload.JobIDs
	if len(jobIDs) == 0 {
		jobIDs = run.Params.JobIDs
	}
	model := payload.ModelName
	if model == "" {
		model = run.Params.ModelName
	}
	if model == "" {
		model = p.deps.Settings.DefaultModel
	}

	machine := RunMachine(runs, run.ID, p.observers()...)
	if err := machine.Start(ctx); err != nil {
		return err
	}
	start := time.Now()
	log.Info("training run started", logger.Int("jobs", len(jobIDs)), logger.String("model", model))

	if err := p.train(ctx, run, jobIDs, model, machine, log); err != nil {
		log.Error("training run failed", logger.Error(err))
		return machine.Fail(ctx, err)
	}
	if err := machine.Succeed(ctx); err != nil {
		return err
	}
	log.Info("training run succeeded", logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Pipeline) train(ctx context.Context, run *entities.TrainingRun, jobIDs []uint, model string, machine *jobstate.Machine, log logger.Logger) error {
	segments, err := p.deps.Store.Segments.ListLabeled(ctx, jobIDs)
	if err != nil {
		return err
	}
	items := make([]dataset.Item, 0, len(segments))
	for _, seg := range segments {
		if seg.TrainingImagePath == "" || seg.LabelName() == "" {
			continue
		}
		items = append(items, dataset.Item{SegmentID: seg.ID, Label: seg.LabelName(), ImagePath: seg.TrainingImagePath})
	}
	if len(items) == 0 {
		return noTrainingData("no labeled segments in the selected jobs", jobIDs)
	}

	runDir := RunDir(p.deps.Settings.TrainingRunsDir, run.ID)
	datasetDir := filepath.Join(runDir, DatasetDirName)
	resultsDir := filepath.Join(runDir, ResultsDirName)
	for _, dir := range []string{datasetDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("pipeline").
				Category(errors.CategoryFileIO).
				Context("operation", "create-run-dir").
				Build()
		}
	}

	split := dataset.Partition(items, p.rand())
	if split.ValFromTrain {
		log.Warn("no validation items, validating on a copy of the training set",
			logger.Int("train", len(split.Train)))
	}
	stats, err := dataset.Materialize(ctx, datasetDir, split,
		machine.Sink(jobstate.TrainingPrepLow, jobstate.TrainingPrepHigh), log)
	if err != nil {
		return err
	}
	if p.deps.Metrics != nil {
		for range stats.Skipped {
			p.deps.Metrics.Skipped("dataset")
		}
	}
	if stats.Copied == 0 {
		return noTrainingData("no training image of the labeled segments exists on disk", jobIDs)
	}
	if err := machine.Advance(ctx, jobstate.TrainingPrepHigh); err != nil {
		return err
	}
	log.Info("dataset assembled",
		logger.Int("train", len(split.Train)),
		logger.Int("val", len(split.Val)),
		logger.Int("classes", stats.Classes),
		logger.Int("skipped", stats.Skipped))

	epochs := machine.Sink(jobstate.TrainingEpochLow, jobstate.TrainingEpochHigh)
	result, err := p.deps.Trainer.Train(ctx, trainer.Request{
		RunID:      run.ID,
		DatasetDir: datasetDir,
		ResultsDir: resultsDir,
		ModelName:  model,
		Epochs:     p.deps.Settings.Epochs,
		ImageSize:  p.deps.Settings.ImageSize,
	}, func(ctx context.Context, epoch, total int) error {
		return epochs.Report(ctx, epoch, total)
	})
	if err != nil {
		return err
	}

	metrics := &entities.TrainingMetrics{}
	switch {
	case result.Confusion != nil:
		metrics = result.Confusion.Metrics(result.AccuracyTop1)
	case result.AccuracyTop1 != nil:
		top1 := trainer.Round4(*result.AccuracyTop1)
		metrics.AccuracyTop1 = &top1
	}
	return p.deps.Store.Runs.SaveResults(ctx, run.ID, metrics, ResultsRelPath(run.ID))
}

func noTrainingData(msg string, jobIDs []uint) error {
	return errors.New(fmt.Errorf("%w: %s", errors.ErrNoTrainingData, msg)).
		Component("pipeline").
		Category(errors.CategoryDataset).
		Context("job_ids", jobIDs).
		Build()
}
