// Package export writes a job's segments as a label CSV or a dataset archive.
// Times are always recomputed from the ordinal with the segmentation planner.
package export

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/segmentation"
)

// Placeholders written for missing values in the label CSV.
const (
	NoLabel      = "No Label"
	NotAvailable = "N/A"
)

// utf8BOM lets spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LabelCSVHeader is the header row of the label CSV.
var LabelCSVHeader = []string{"ID", "Audio Filename", "Spectrogram Filename", "Label"}

// CSVFileName returns the download name of a job's label CSV.
func CSVFileName(job *entities.AudioJob) string {
	return fmt.Sprintf("labels_%s_%d.csv", job.SourceName, job.ID)
}

// WriteLabelCSV writes one row per segment in ordinal order.
func WriteLabelCSV(w io.Writer, segments []*entities.Segment) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return writeError(err, "label-csv")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(LabelCSVHeader); err != nil {
		return writeError(err, "label-csv")
	}
	for _, seg := range byOrdinal(segments) {
		label := seg.LabelName()
		if label == "" {
			label = NoLabel
		}
		audio := NotAvailable
		if seg.AudioPath != "" {
			audio = filepath.Base(seg.AudioPath)
		}
		spec := seg.DisplayImagePath
		if spec == "" {
			spec = seg.TrainingImagePath
		}
		if spec != "" {
			spec = filepath.Base(spec)
		}
		if err := cw.Write([]string{strconv.FormatUint(uint64(seg.ID), 10), audio, spec, label}); err != nil {
			return writeError(err, "label-csv")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return writeError(err, "label-csv")
	}
	return nil
}

// TimeSegment returns "<start> - <end>" for ordinal i of job.
func TimeSegment(job *entities.AudioJob, ordinal int) string {
	return segmentation.WindowAt(ordinal, jobParams(job)).String()
}

func jobParams(job *entities.AudioJob) segmentation.Params {
	return segmentation.ParamsFromPercent(job.SegmentDuration, job.Overlap)
}

// byOrdinal returns a copy of segments sorted by ordinal.
func byOrdinal(segments []*entities.Segment) []*entities.Segment {
	sorted := slices.Clone(segments)
	slices.SortStableFunc(sorted, func(a, b *entities.Segment) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return sorted
}

func writeError(err error, format string) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryFileIO).
		Context("format", format).
		Build()
}
