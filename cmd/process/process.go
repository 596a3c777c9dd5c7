// Package process implements the process command, which segments one
// recording without going through the task queue.
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/segmentlab/internal/api"
	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/pipeline"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

// Command creates the process command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [audio file]",
		Short: "Segment a recording and render its clips and spectrograms",
		Long: `Creates an audio job for the recording and runs it immediately.
Segmentation parameters default to the segmentation section of the config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), settings, args[0])
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Float64("segment-duration", 2.0, "Segment length in seconds")
	cmd.Flags().Float64("overlap", 50, "Overlap between segments in percent, 0 to below 100")
	cmd.Flags().Int("sample-rate", 0, "Sample rate of the rendered clips, 0 keeps the source rate")
	cmd.Flags().String("channels", codec.ChannelsMono, "Channels of the rendered clips: mono or stereo")
	cmd.Flags().String("spec-type", codec.SpecMel, "Spectrogram frequency scale: mel or linear")

	for key, flag := range map[string]string{
		"segmentation.segmentduration": "segment-duration",
		"segmentation.overlap":         "overlap",
		"segmentation.samplerate":      "sample-rate",
		"segmentation.channels":        "channels",
		"segmentation.spectype":        "spec-type",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings, input string) error {
	seg := settings.Segmentation
	if err := segmentation.ParamsFromPercent(seg.SegmentDuration, seg.Overlap).Validate(); err != nil {
		return err
	}
	render := codec.RenderParams{SampleRate: seg.SampleRate, Channels: seg.Channels, SpecType: seg.SpecType}
	if err := render.Validate(); err != nil {
		return err
	}
	if info, err := os.Stat(input); err != nil || info.IsDir() {
		return errors.ValidationError(fmt.Sprintf("%s is not a readable file", input))
	}

	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p, err := a.Pipeline()
	if err != nil {
		return err
	}

	job, err := createJob(ctx, a, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Processing %s as job %d\n", job.SourceName, job.ID)

	// the workflow records its own failure on the job
	runErr := p.ProcessAudio(ctx, pipeline.ProcessAudioPayload{JobID: job.ID})

	job, err = a.Store.Jobs.GetByID(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("job %d failed: %w", job.ID, runErr)
	}
	count, err := a.Store.Segments.CountByJob(ctx, job.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Job %d %s: %d segments in %s\n", job.ID, job.Status, count, job.ResultPath)
	return nil
}

// createJob stores a pending job and copies the recording into the uploads
// directory the same way the upload endpoint does.
func createJob(ctx context.Context, a *app.App, input string) (*entities.AudioJob, error) {
	seg := a.Settings.Segmentation
	job := &entities.AudioJob{
		SourceName:      filepath.Base(input),
		SegmentDuration: seg.SegmentDuration,
		Overlap:         seg.Overlap,
		SampleRate:      seg.SampleRate,
		Channels:        seg.Channels,
		SpecType:        seg.SpecType,
		Status:          entities.JobPending,
	}
	if err := a.Store.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	job.SourcePath = filepath.Join(a.Settings.Storage.UploadsDir, fmt.Sprintf("%d_%s", job.ID, api.SanitizeFilename(job.SourceName)))
	job.ResultPath = filepath.Join(a.Settings.Storage.ResultsDir, strconv.FormatUint(uint64(job.ID), 10))
	if err := copyFile(input, job.SourcePath); err != nil {
		_ = a.Store.Jobs.SetState(ctx, job.ID, entities.JobFailed, 0, err.Error())
		return nil, err
	}
	if err := a.Store.Jobs.SetSourcePath(ctx, job.ID, job.SourcePath); err != nil {
		return nil, err
	}
	if err := a.Store.Jobs.SetResultPath(ctx, job.ID, job.ResultPath); err != nil {
		return nil, err
	}
	return job, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return copyError(err, src)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return copyError(err, dst)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return copyError(err, dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return copyError(err, dst)
	}
	return out.Close()
}

func copyError(err error, path string) error {
	return errors.New(err).
		Component("cli").
		Category(errors.CategoryFileIO).
		Context("operation", "copy-source").
		FileContext(path).
		Build()
}
