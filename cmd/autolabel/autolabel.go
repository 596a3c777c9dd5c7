// Package autolabel implements the autolabel command.
package autolabel

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/inference"
	"github.com/tphakala/segmentlab/internal/pipeline"
)

type options struct {
	jobID      uint
	modelPath  string
	classNames string
}

// Command creates the autolabel command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "autolabel",
		Short: "Label the segments of a job with a trained classifier",
		Long: `Runs a .tflite or .onnx image classifier over the training spectrograms
of a job and assigns the predicted class to every segment. ONNX models need a
class_names.json manifest, either beside the model or given with --class-names.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), settings, opts)
		},
	}

	cmd.Flags().UintVar(&opts.jobID, "job", 0, "Audio job ID to label")
	cmd.Flags().StringVar(&opts.modelPath, "model", "", "Path to a .tflite or .onnx model")
	cmd.Flags().StringVar(&opts.classNames, "class-names", "", "Path to a JSON class name list for the model")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings, opts options) error {
	variant, err := inference.DetectVariant(opts.modelPath)
	if err != nil {
		return err
	}

	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if _, err := a.Store.Jobs.GetByID(ctx, opts.jobID); err != nil {
		return fmt.Errorf("job %d: %w", opts.jobID, err)
	}

	// the workflow deletes the model it runs, so it always gets a staged copy
	staged, err := stage(settings.Storage.TempModelsDir, opts)
	if err != nil {
		return err
	}

	p, err := a.Pipeline()
	if err != nil {
		_ = os.RemoveAll(filepath.Dir(staged))
		return err
	}

	fmt.Fprintf(out, "Labeling job %d with %s model %s\n", opts.jobID, variant, filepath.Base(opts.modelPath))
	summary, err := p.AutoLabel(ctx, pipeline.AutoLabelPayload{JobID: opts.jobID, ModelPath: staged})
	if err != nil {
		return fmt.Errorf("auto-label of job %d failed: %w", opts.jobID, err)
	}
	fmt.Fprintf(out, "Labeled %d of %d segments (%d skipped, %d new labels)\n",
		summary.Labeled, summary.Segments, summary.Skipped, summary.NewLabels)
	return nil
}

func stage(tempDir string, opts options) (string, error) {
	model, err := os.Open(opts.modelPath)
	if err != nil {
		return "", errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			FileContext(opts.modelPath).
			Build()
	}
	defer func() { _ = model.Close() }()

	manifestPath := opts.classNames
	if manifestPath == "" {
		manifestPath = inference.ManifestPath(opts.modelPath)
	}
	var manifest io.Reader
	if f, err := os.Open(manifestPath); err == nil {
		defer func() { _ = f.Close() }()
		manifest = f
	} else if opts.classNames != "" {
		return "", errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			FileContext(manifestPath).
			Build()
	}

	return pipeline.StageModel(tempDir, opts.jobID, filepath.Base(opts.modelPath), model, manifest)
}
