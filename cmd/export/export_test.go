package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	exp "github.com/tphakala/segmentlab/internal/export"
	"github.com/tphakala/segmentlab/internal/testutil"
)

func seed(t *testing.T) (*conf.Settings, *entities.AudioJob) {
	t.Helper()
	settings := testutil.Settings(t)

	a, err := app.Open(settings)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	job := &entities.AudioJob{SourceName: "dawn.wav", SegmentDuration: 2, Overlap: 50, Channels: "mono", SpecType: "mel", Status: entities.JobCompleted}
	require.NoError(t, a.Store.Jobs.Create(ctx, job))
	require.NoError(t, a.Store.Segments.CreateBatch(ctx, []entities.Segment{
		{JobID: job.ID, Ordinal: 0, StartSeconds: 0, EndSeconds: 2},
		{JobID: job.ID, Ordinal: 1, StartSeconds: 1, EndSeconds: 3},
	}))
	return settings, job
}

func execute(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := Command(settings)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	settings, job := seed(t)
	outDir := t.TempDir()

	out, err := execute(t, settings, "--job", "1", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows")

	data, err := os.ReadFile(filepath.Join(outDir, exp.CSVFileName(job)))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\xef\xbb\xbf")))
	assert.Contains(t, string(data), exp.NoLabel)
}

func TestExportArchive(t *testing.T) {
	t.Parallel()
	settings, _ := seed(t)
	target := filepath.Join(t.TempDir(), "dataset.zip")

	_, err := execute(t, settings, "--job", "1", "--zip", "--out", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestExportErrors(t *testing.T) {
	t.Parallel()
	settings, _ := seed(t)

	_, err := execute(t, settings, "--job", "99", "--out", t.TempDir())
	assert.Error(t, err, "unknown job")

	_, err = execute(t, settings, "--job", "1", "--csv", "--zip")
	assert.Error(t, err, "exclusive flags")

	_, err = execute(t, settings)
	assert.Error(t, err, "missing job")
}
