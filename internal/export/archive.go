package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/logger"
)

// Archive layout.
const (
	AudioFolder    = "audio"
	ImagesFolder   = "images"
	LabelsFileName = "labels.csv"
)

// ArchiveHeader is the header row of labels.csv inside the archive.
var ArchiveHeader = []string{"filename", "label_name", "time_segment"}

// ArchiveFileName returns the download name of a job's dataset archive.
func ArchiveFileName(job *entities.AudioJob) string {
	base := strings.TrimSuffix(job.SourceName, filepath.Ext(job.SourceName))
	return fmt.Sprintf("dataset_%s_%d.zip", base, job.ID)
}

// ArchiveStats counts what went into an archive.
type ArchiveStats struct {
	Audio   int
	Images  int
	Rows    int
	Skipped int
}

// WriteDatasetArchive writes a zip with audio clips under audio/, training
// spectrograms under images/ and labels.csv. Display spectrograms are never
// included. Artifacts missing on disk are skipped; their rows remain.
func WriteDatasetArchive(ctx context.Context, w io.Writer, job *entities.AudioJob, segments []*entities.Segment) (ArchiveStats, error) {
	var stats ArchiveStats
	log := GetLogger().With(logger.Uint64("job_id", uint64(job.ID)))

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	rows := [][]string{ArchiveHeader}
	for _, seg := range byOrdinal(segments) {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return stats, err
		}

		if seg.AudioPath != "" && codec.IsAudioFile(seg.AudioPath) {
			added, err := addFile(zw, seg.AudioPath, path.Join(AudioFolder, filepath.Base(seg.AudioPath)))
			if err != nil {
				_ = zw.Close()
				return stats, err
			}
			if added {
				stats.Audio++
			} else {
				stats.Skipped++
				log.Warn("audio clip missing, skipped", logger.String("path", seg.AudioPath))
			}
		}

		filename := ""
		if seg.TrainingImagePath != "" && codec.IsTrainingImage(seg.TrainingImagePath) {
			filename = filepath.Base(seg.TrainingImagePath)
			added, err := addFile(zw, seg.TrainingImagePath, path.Join(ImagesFolder, filename))
			if err != nil {
				_ = zw.Close()
				return stats, err
			}
			if added {
				stats.Images++
			} else {
				stats.Skipped++
				log.Warn("training image missing, skipped", logger.String("path", seg.TrainingImagePath))
			}
		}

		rows = append(rows, []string{filename, seg.LabelName(), TimeSegment(job, seg.Ordinal)})
		stats.Rows++
	}

	lw, err := zw.Create(LabelsFileName)
	if err != nil {
		_ = zw.Close()
		return stats, writeError(err, "zip")
	}
	cw := csv.NewWriter(lw)
	if err := cw.WriteAll(rows); err != nil {
		_ = zw.Close()
		return stats, writeError(err, "zip")
	}
	if err := zw.Close(); err != nil {
		return stats, writeError(err, "zip")
	}
	return stats, nil
}

// addFile copies src into the archive as name. It reports false when src does not exist.
func addFile(zw *zip.Writer, src, name string) (bool, error) {
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, writeError(err, "zip")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, writeError(err, "zip")
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, writeError(err, "zip")
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return false, writeError(err, "zip")
	}
	if _, err := io.Copy(dst, f); err != nil {
		return false, writeError(err, "zip")
	}
	return true, nil
}
