// Package train implements the train command.
package train

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/cliutil"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/pipeline"
)

// Command creates the train command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		jobIDs []uint
		model  string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier on the labeled segments of audio jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(jobIDs) == 0 {
				return errors.ValidationError("at least one job is required, use --jobs 1,2")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), settings, pipeline.TrainModelPayload{JobIDs: jobIDs, ModelName: model})
		},
	}

	cmd.Flags().UintSliceVar(&jobIDs, "jobs", nil, "Comma separated audio job IDs to train on")
	cmd.Flags().StringVar(&model, "model", "", "Base model name passed to the training service (default from config)")
	if err := setupFlags(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Int("epochs", 50, "Number of training epochs")
	cmd.Flags().Int("image-size", 224, "Training image size in pixels")

	for key, flag := range map[string]string{
		"training.epochs":    "epochs",
		"training.imagesize": "image-size",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings, payload pipeline.TrainModelPayload) error {
	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	for _, id := range payload.JobIDs {
		if _, err := a.Store.Jobs.GetByID(ctx, id); err != nil {
			return fmt.Errorf("job %d: %w", id, err)
		}
	}

	p, err := a.Pipeline()
	if err != nil {
		return err
	}

	tr, err := p.CreateRun(ctx, payload)
	if err != nil {
		return err
	}
	payload.RunID = tr.ID
	fmt.Fprintf(out, "Training run %d started with %s on jobs %v\n", tr.ID, tr.Params.ModelName, payload.JobIDs)

	trainErr := p.TrainModel(ctx, payload)

	tr, err = a.Store.Runs.GetByID(context.WithoutCancel(ctx), tr.ID)
	if err != nil {
		return err
	}
	if trainErr != nil {
		return fmt.Errorf("training run %d failed: %w", tr.ID, trainErr)
	}
	printReport(out, tr)
	return nil
}

func printReport(out io.Writer, run *entities.TrainingRun) {
	fmt.Fprintf(out, "Training run %d %s, results in %s\n", run.ID, run.Status, run.ResultsPath)
	if run.Metrics == nil {
		return
	}
	fmt.Fprintf(out, "Top-1 accuracy: %s\n", cliutil.FormatPercent(run.Metrics.AccuracyTop1))

	rows := make([][]string, 0, len(run.Metrics.PerClass))
	for _, c := range run.Metrics.PerClass {
		rows = append(rows, []string{
			c.Name,
			fmt.Sprintf("%.4f", c.Precision),
			fmt.Sprintf("%.4f", c.Recall),
			fmt.Sprintf("%.4f", c.F1),
		})
	}
	fmt.Fprintln(out, cliutil.RenderTable(
		[]string{"Class", "Precision", "Recall", "F1"},
		rows,
		[]cliutil.Align{cliutil.AlignLeft, cliutil.AlignRight, cliutil.AlignRight, cliutil.AlignRight},
	))
}
