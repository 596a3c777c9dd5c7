// Package trainer drives an external image-classification trainer and turns
// its confusion matrix into per-class metrics.
package trainer

import (
	"context"
)

// Report artifacts a trainer leaves in the results directory.
var ReportArtifacts = []string{
	"results.png",
	"confusion_matrix.png",
	"val_batch0_labels.jpg",
	"val_batch0_pred.jpg",
}

// Request describes one training run.
type Request struct {
	RunID      uint   `json:"run_id"`
	DatasetDir string `json:"dataset_dir"` // holds train/ and val/
	ResultsDir string `json:"results_dir"`
	ModelName  string `json:"model"`
	Epochs     int    `json:"epochs"`
	ImageSize  int    `json:"imgsz"`
}

// EpochFunc is called after each completed epoch. A returned error aborts training.
type EpochFunc func(ctx context.Context, epoch, total int) error

// Result is what a finished run produced.
type Result struct {
	ResultsDir   string
	AccuracyTop1 *float64 // nil when the trainer did not report it
	Confusion    *ConfusionMatrix
}

// Trainable trains a model on a dataset directory.
type Trainable interface {
	Train(ctx context.Context, req Request, onEpoch EpochFunc) (*Result, error)
}
