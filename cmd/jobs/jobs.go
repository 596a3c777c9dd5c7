// Package jobs implements the jobs command, which prints the audio job
// history and the segments of one job.
package jobs

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/cliutil"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/export"
)

const timeLayout = "2006-01-02 15:04"

// Command creates the jobs command.
func Command(settings *conf.Settings) *cobra.Command {
	var ascending bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List audio jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJobs(cmd.Context(), cmd.OutOrStdout(), settings, ascending)
		},
	}
	cmd.Flags().BoolVar(&ascending, "asc", false, "Oldest first")

	cmd.AddCommand(&cobra.Command{
		Use:   "segments [job id]",
		Short: "List the segments of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cliutil.ParseID(args[0])
			if err != nil {
				return err
			}
			return listSegments(cmd.Context(), cmd.OutOrStdout(), settings, id)
		},
	})

	return cmd
}

func listJobs(ctx context.Context, out io.Writer, settings *conf.Settings, ascending bool) error {
	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	jobs, err := a.Store.Jobs.List(ctx, ascending)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No audio jobs")
		return nil
	}

	counts := make(map[uint]int64, len(jobs))
	for _, j := range jobs {
		if counts[j.ID], err = a.Store.Segments.CountByJob(ctx, j.ID); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, renderJobs(jobs, counts))
	return nil
}

func renderJobs(jobs []*entities.AudioJob, counts map[uint]int64) string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		status := string(j.Status)
		if j.Status == entities.JobFailed && j.Error != "" {
			status += ": " + j.Error
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(j.ID), 10),
			j.SourceName,
			status,
			fmt.Sprintf("%d%%", j.Progress),
			strconv.FormatInt(counts[j.ID], 10),
			fmt.Sprintf("%gs / %g%%", j.SegmentDuration, j.Overlap),
			j.CreatedAt.Local().Format(timeLayout),
		})
	}
	return cliutil.RenderTable(
		[]string{"ID", "Source", "Status", "Progress", "Segments", "Window", "Created"},
		rows,
		[]cliutil.Align{cliutil.AlignRight, cliutil.AlignLeft, cliutil.AlignLeft, cliutil.AlignRight, cliutil.AlignRight},
	)
}

func listSegments(ctx context.Context, out io.Writer, settings *conf.Settings, id uint) error {
	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	job, err := a.Store.Jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	segments, err := a.Store.Segments.ListByJob(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderSegments(job, segments))
	return nil
}

func renderSegments(job *entities.AudioJob, segments []*entities.Segment) string {
	rows := make([][]string, 0, len(segments))
	for _, s := range segments {
		label := s.LabelName()
		if label == "" {
			label = export.NoLabel
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Ordinal),
			export.TimeSegment(job, s.Ordinal),
			label,
		})
	}
	return cliutil.RenderTable([]string{"#", "Time", "Label"}, rows, []cliutil.Align{cliutil.AlignRight})
}
