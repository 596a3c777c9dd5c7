package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

// renderHigh is the progress reached when every window is rendered; the
// remainder covers persisting the segments.
const renderHigh = 95

// JobMachine returns the state machine of an audio job committing through jobs.
func JobMachine(jobs repository.JobRepository, id uint, observers ...jobstate.Observer) *jobstate.Machine {
	return jobstate.New(jobstate.KindAudio, id, jobstate.CommitterFunc(
		func(ctx context.Context, status string, progress int, errMsg string) error {
			return jobs.SetState(ctx, id, entities.JobStatus(status), progress, errMsg)
		}), observers...)
}

// ProcessAudio segments the recording of job id and persists one Segment per
// planned window. A missing job is logged and ignored. A job that is no
// longer PENDING is left untouched.
func (p *Pipeline) ProcessAudio(ctx context.Context, payload ProcessAudioPayload) error {
	id := payload.JobID
	log := p.log.With(logger.Uint64("job_id", uint64(id)))

	release, err := p.lock(ctx, LockAudioJob, id)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	jobs := p.deps.Store.Jobs
	job, err := jobs.GetByID(ctx, id)
	if errors.Is(err, repository.ErrJobNotFound) {
		log.Warn("audio job not found, nothing to process")
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status != entities.JobPending {
		log.Warn("audio job is not pending, skipping", logger.String("status", string(job.Status)))
		return nil
	}

	machine := JobMachine(jobs, id, p.observers()...)

	params := segmentation.ParamsFromPercent(job.SegmentDuration, job.Overlap)
	render := codec.RenderParams{SampleRate: job.SampleRate, Channels: job.Channels, SpecType: job.SpecType}
	if err := p.checkAudioPreconditions(params, render); err != nil {
		return machine.Fail(ctx, err)
	}

	if err := machine.Start(ctx); err != nil {
		return err
	}
	start := time.Now()
	log.Info("processing audio job",
		logger.String("source", job.SourceName),
		logger.Float64("segment_duration", job.SegmentDuration),
		logger.Float64("overlap", job.Overlap))

	n, err := p.segmentJob(ctx, job, params, render, machine)
	if err != nil {
		log.Error("audio job failed", logger.Error(err))
		return machine.Fail(ctx, err)
	}
	if err := machine.Succeed(ctx); err != nil {
		return err
	}
	log.Info("audio job completed",
		logger.Int("segments", n),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Pipeline) checkAudioPreconditions(params segmentation.Params, render codec.RenderParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := render.Validate(); err != nil {
		return err
	}
	return p.deps.Guard.Check()
}

// segmentJob renders every window and stores the segments in one batch.
func (p *Pipeline) segmentJob(ctx context.Context, job *entities.AudioJob, params segmentation.Params, render codec.RenderParams, machine *jobstate.Machine) (int, error) {
	outDir := job.ResultPath
	if outDir == "" {
		outDir = filepath.Join(p.deps.Settings.ResultsDir, strconv.FormatUint(uint64(job.ID), 10))
		if err := p.deps.Store.Jobs.SetResultPath(ctx, job.ID, outDir); err != nil {
			return 0, err
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			Context("operation", "create-result-dir").
			Build()
	}

	duration, err := p.deps.Codec.Duration(ctx, job.SourcePath)
	if err != nil {
		return 0, err
	}
	windows, err := segmentation.PlanWithin(duration, params, p.deps.Settings.MaxSegments)
	if err != nil {
		return 0, err
	}

	base := codec.BaseName(job.SourcePath)
	sink := machine.Sink(0, renderHigh)
	segments := make([]entities.Segment, 0, len(windows))
	for i, w := range windows {
		arts, err := p.deps.Codec.RenderSegment(ctx, job.SourcePath, outDir, base, w, render)
		if err != nil {
			return 0, err
		}
		segments = append(segments, entities.Segment{
			JobID:             job.ID,
			Ordinal:           w.Index,
			StartSeconds:      w.Start,
			EndSeconds:        w.End,
			AudioPath:         arts.AudioPath,
			DisplayImagePath:  arts.DisplayImagePath,
			TrainingImagePath: arts.TrainingImagePath,
		})
		if err := sink.Report(ctx, i+1, len(windows)); err != nil {
			return 0, err
		}
	}

	if len(segments) > 0 {
		if err := p.deps.Store.Segments.CreateBatch(ctx, segments); err != nil {
			return 0, err
		}
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.AddSegments(len(segments))
	}
	return len(segments), nil
}
