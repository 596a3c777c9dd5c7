package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/inference"
	"github.com/tphakala/segmentlab/internal/labels"
	"github.com/tphakala/segmentlab/internal/logger"
)

// AutoLabelSummary reports the outcome of one auto-label run.
type AutoLabelSummary struct {
	Variant   inference.Variant
	Segments  int
	Labeled   int
	Skipped   int
	NewLabels int
}

// AutoLabel predicts a label for every segment of a job with the uploaded
// model and assigns all predictions in one commit. Segments whose training
// image is missing are skipped. The model file, its class manifest and the
// directory holding them are removed whatever the outcome.
func (p *Pipeline) AutoLabel(ctx context.Context, payload AutoLabelPayload) (*AutoLabelSummary, error) {
	defer p.removeTempModel(payload.ModelPath)

	log := p.log.With(logger.Uint64("job_id", uint64(payload.JobID)))

	release, err := p.lock(ctx, LockAudioJob, payload.JobID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = release() }()

	if _, err := p.deps.Store.Jobs.GetByID(ctx, payload.JobID); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			log.Warn("audio job not found, nothing to label")
			return &AutoLabelSummary{}, nil
		}
		return nil, err
	}

	classifier, err := p.deps.Load(payload.ModelPath, p.deps.Settings.Inference)
	if err != nil {
		return nil, err
	}
	defer func() { _ = classifier.Close() }()

	summary := &AutoLabelSummary{Variant: classifier.Variant()}
	start := time.Now()

	before, err := p.deps.Store.Labels.List(ctx)
	if err != nil {
		return nil, err
	}
	reconciler := labels.NewReconciler(p.deps.Store.Labels, log)
	if _, err := reconciler.Ensure(ctx, classifier.ClassNames()); err != nil {
		return nil, err
	}
	if after, err := p.deps.Store.Labels.List(ctx); err == nil {
		summary.NewLabels = len(after) - len(before)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.LabelsResolved.Add(float64(len(classifier.ClassNames())))
	}

	segments, err := p.deps.Store.Segments.ListByJob(ctx, payload.JobID)
	if err != nil {
		return nil, err
	}
	summary.Segments = len(segments)

	assignments := make(map[uint]uint, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seg.TrainingImagePath == "" || !fileExists(seg.TrainingImagePath) {
			p.skip(log, seg.ID, seg.TrainingImagePath)
			summary.Skipped++
			continue
		}

		pred, err := classifier.Predict(ctx, seg.TrainingImagePath)
		if errors.Is(err, errors.ErrMissingArtifact) {
			p.skip(log, seg.ID, seg.TrainingImagePath)
			summary.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.deps.Metrics != nil {
			p.deps.Metrics.Prediction(string(pred.Variant))
		}

		labelID, ok := reconciler.ID(pred.Label)
		if !ok {
			log.Warn("predicted class has no label, skipping",
				logger.Uint64("segment_id", uint64(seg.ID)),
				logger.String("class", pred.Label))
			summary.Skipped++
			continue
		}
		assignments[seg.ID] = labelID
	}

	if len(assignments) > 0 {
		if err := p.deps.Store.Segments.ApplyLabels(ctx, assignments); err != nil {
			return nil, err
		}
	}
	summary.Labeled = len(assignments)

	log.Info("auto-labeling completed",
		logger.String("variant", string(summary.Variant)),
		logger.Int("segments", summary.Segments),
		logger.Int("labeled", summary.Labeled),
		logger.Int("skipped", summary.Skipped),
		logger.Int("new_labels", summary.NewLabels),
		logger.Duration("elapsed", time.Since(start)))
	return summary, nil
}

func (p *Pipeline) skip(log logger.Logger, segmentID uint, path string) {
	log.Warn("training image missing, segment skipped",
		logger.Uint64("segment_id", uint64(segmentID)),
		logger.String("path", path))
	if p.deps.Metrics != nil {
		p.deps.Metrics.Skipped("autolabel")
	}
}

// removeTempModel deletes the model, its manifest and their directory when
// it is left empty. Only the model's own directory is considered.
func (p *Pipeline) removeTempModel(modelPath string) {
	if modelPath == "" {
		return
	}
	for _, path := range []string{modelPath, inference.ManifestPath(modelPath)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.log.Warn("failed to remove temporary model file", logger.String("path", path), logger.Error(err))
		}
	}
	// fails harmlessly when other files remain
	_ = os.Remove(filepath.Dir(modelPath))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
