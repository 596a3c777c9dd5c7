package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/codec"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
)

func testJob() *entities.AudioJob {
	return &entities.AudioJob{ID: 3, SourceName: "marsh.wav", SegmentDuration: 2.0, Overlap: 50}
}

// writeSegments creates artifacts for n segments in dir and returns them in reverse ordinal order.
func writeSegments(t *testing.T, dir string, n int) []*entities.Segment {
	t.Helper()
	segs := make([]*entities.Segment, 0, n)
	for i := n - 1; i >= 0; i-- {
		names := codec.ArtifactNames("marsh", i)
		for _, name := range []string{names.AudioPath, names.DisplayImagePath, names.TrainingImagePath} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
		}
		segs = append(segs, &entities.Segment{
			ID:                uint(100 + i),
			Ordinal:           i,
			AudioPath:         filepath.Join(dir, names.AudioPath),
			DisplayImagePath:  filepath.Join(dir, names.DisplayImagePath),
			TrainingImagePath: filepath.Join(dir, names.TrainingImagePath),
		})
	}
	return segs
}

func TestWriteLabelCSV(t *testing.T) {
	t.Parallel()

	segs := writeSegments(t, t.TempDir(), 2)
	frog := &entities.Label{ID: 1, Name: "frog"}
	segs[1].Label = frog // ordinal 0
	segs[0].AudioPath = ""

	var buf bytes.Buffer
	require.NoError(t, WriteLabelCSV(&buf, segs))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))
	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, LabelCSVHeader, records[0])
	assert.Equal(t, []string{"100", "marsh_0_audio.wav", "marsh_0_spec_display_.png", "frog"}, records[1])
	assert.Equal(t, []string{"101", NotAvailable, "marsh_1_spec_display_.png", NoLabel}, records[2])
}

func TestFileNames(t *testing.T) {
	t.Parallel()

	job := testJob()
	assert.Equal(t, "labels_marsh.wav_3.csv", CSVFileName(job))
	assert.Equal(t, "dataset_marsh_3.zip", ArchiveFileName(job))
}

func TestTimeSegmentRecomputed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:02.000 - 00:04.000", TimeSegment(testJob(), 2))
	assert.Equal(t, "00:00.000 - 00:02.000", TimeSegment(testJob(), 0))
}

func TestWriteDatasetArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	segs := writeSegments(t, dir, 4)
	bird := &entities.Label{ID: 2, Name: "bird"}
	segs[1].Label = bird // ordinal 2
	// stored times are ignored
	segs[1].StartSeconds, segs[1].EndSeconds = 99, 100
	require.NoError(t, os.Remove(segs[0].TrainingImagePath)) // ordinal 3

	var buf bytes.Buffer
	stats, err := WriteDatasetArchive(context.Background(), &buf, testJob(), segs)
	require.NoError(t, err)
	assert.Equal(t, ArchiveStats{Audio: 4, Images: 3, Rows: 4, Skipped: 1}, stats)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var names []string
	var labels []byte
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == LabelsFileName {
			rc, err := f.Open()
			require.NoError(t, err)
			labels, err = io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
		}
	}
	sort.Strings(names)
	assert.Contains(t, names, "audio/marsh_0_audio.wav")
	assert.Contains(t, names, "images/marsh_0_spec_training_.png")
	assert.NotContains(t, names, "images/marsh_3_spec_training_.png")
	for _, n := range names {
		assert.NotContains(t, n, codec.DisplayMarker)
	}

	records, err := csv.NewReader(bytes.NewReader(labels)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, ArchiveHeader, records[0])
	assert.Equal(t, []string{"marsh_2_spec_training_.png", "bird", "00:02.000 - 00:04.000"}, records[3])
	assert.Equal(t, "00:03.000 - 00:05.000", records[4][2])
}

func TestWriteDatasetArchiveCancelled(t *testing.T) {
	t.Parallel()

	segs := writeSegments(t, t.TempDir(), 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WriteDatasetArchive(ctx, io.Discard, testJob(), segs)
	assert.ErrorIs(t, err, context.Canceled)
}
