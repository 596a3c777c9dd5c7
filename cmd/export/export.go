// Package export implements the export command, which writes the label
// CSV or the dataset archive of a job to a file.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/errors"
	exp "github.com/tphakala/segmentlab/internal/export"
)

type options struct {
	jobID   uint
	archive bool
	out     string
}

// Command creates the export command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		opts    options
		csvFlag bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the labels or the dataset of a job",
		Long: `Writes the label CSV (--csv, default) or a zip archive with the audio clips,
training spectrograms and labels.csv (--zip) of a job. The file is written to
the current directory unless --out is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), settings, opts)
		},
	}

	cmd.Flags().UintVar(&opts.jobID, "job", 0, "Audio job ID to export")
	cmd.Flags().BoolVar(&csvFlag, "csv", false, "Export the label CSV")
	cmd.Flags().BoolVar(&opts.archive, "zip", false, "Export the dataset archive")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file or directory")
	cmd.MarkFlagsMutuallyExclusive("csv", "zip")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings, opts options) error {
	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	job, err := a.Store.Jobs.GetByID(ctx, opts.jobID)
	if err != nil {
		return err
	}
	segments, err := a.Store.Segments.ListByJob(ctx, job.ID)
	if err != nil {
		return err
	}

	name := exp.CSVFileName(job)
	if opts.archive {
		name = exp.ArchiveFileName(job)
	}
	path := outputPath(opts.out, name)

	f, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}

	if opts.archive {
		var stats exp.ArchiveStats
		stats, err = exp.WriteDatasetArchive(ctx, f, job, segments)
		if err == nil {
			fmt.Fprintf(out, "Wrote %s: %d rows, %d clips, %d images, %d missing files skipped\n",
				path, stats.Rows, stats.Audio, stats.Images, stats.Skipped)
		}
	} else {
		err = exp.WriteLabelCSV(f, segments)
		if err == nil {
			fmt.Fprintf(out, "Wrote %s: %d rows\n", path, len(segments))
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// outputPath places name inside out when out is an existing directory.
func outputPath(out, name string) string {
	if out == "" {
		return name
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}
