package pipeline

import (
	"context"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/taskqueue"
)

// Dispatcher enqueues workflows as fire-and-forget tasks.
type Dispatcher struct {
	queue    *taskqueue.Queue
	pipeline *Pipeline
}

// NewDispatcher binds a pipeline to a queue.
func NewDispatcher(queue *taskqueue.Queue, p *Pipeline) *Dispatcher {
	return &Dispatcher{queue: queue, pipeline: p}
}

type processAudioAction struct{ p *Pipeline }

func (a processAudioAction) Execute(ctx context.Context, payload ProcessAudioPayload) error {
	return a.p.ProcessAudio(ctx, payload)
}

type trainModelAction struct{ p *Pipeline }

func (a trainModelAction) Execute(ctx context.Context, payload TrainModelPayload) error {
	return a.p.TrainModel(ctx, payload)
}

type autoLabelAction struct{ p *Pipeline }

func (a autoLabelAction) Execute(ctx context.Context, payload AutoLabelPayload) error {
	_, err := a.p.AutoLabel(ctx, payload)
	return err
}

// Discard removes the staged model of a task dropped on shutdown.
func (a autoLabelAction) Discard(payload AutoLabelPayload) {
	a.p.removeTempModel(payload.ModelPath)
}

// ProcessAudio enqueues a process_audio task.
func (d *Dispatcher) ProcessAudio(payload ProcessAudioPayload) error {
	_, err := taskqueue.EnqueueTyped(d.queue, TaskProcessAudio, processAudioAction{d.pipeline}, payload)
	return err
}

// TrainModel enqueues a train_model task.
func (d *Dispatcher) TrainModel(payload TrainModelPayload) error {
	_, err := taskqueue.EnqueueTyped(d.queue, TaskTrainModel, trainModelAction{d.pipeline}, payload)
	return err
}

// AutoLabel enqueues an auto_label task. When the task cannot be queued the
// staged model is removed here since no workflow will.
func (d *Dispatcher) AutoLabel(payload AutoLabelPayload) error {
	_, err := taskqueue.EnqueueTyped(d.queue, TaskAutoLabel, autoLabelAction{d.pipeline}, payload)
	if err != nil {
		d.pipeline.removeTempModel(payload.ModelPath)
	}
	return err
}

// CreateRun inserts a PENDING training run so callers can report its ID
// before the train_model task is queued.
func (d *Dispatcher) CreateRun(ctx context.Context, payload TrainModelPayload) (*entities.TrainingRun, error) {
	return d.pipeline.CreateRun(ctx, payload)
}

// Recover enqueues every PENDING audio job and training run again. Tasks
// lost to a shutdown or crash leave their rows PENDING; the workflows skip
// rows that are no longer PENDING, so a row queued twice runs once.
func (d *Dispatcher) Recover(ctx context.Context) (int, error) {
	store := d.pipeline.deps.Store
	jobs, err := store.Jobs.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	runs, err := store.Runs.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	requeued := 0
	for _, job := range jobs {
		if err := d.ProcessAudio(ProcessAudioPayload{JobID: job.ID}); err != nil {
			errs = append(errs, err)
			continue
		}
		requeued++
	}
	for _, run := range runs {
		if err := d.TrainModel(TrainModelPayload{RunID: run.ID}); err != nil {
			errs = append(errs, err)
			continue
		}
		requeued++
	}
	if len(errs) > 0 {
		d.pipeline.log.Warn("pending rows not requeued",
			logger.Int("count", len(errs)),
			logger.Error(errs[0]))
	}
	return requeued, errors.Join(errs...)
}
