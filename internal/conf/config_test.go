package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "storage:\n  datadir: /srv/lab\n")
	s, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, s.Segmentation.SegmentDuration, 0)
	assert.InDelta(t, 50.0, s.Segmentation.Overlap, 0)
	assert.Equal(t, "mel", s.Segmentation.SpecType)
	assert.Equal(t, 100000, s.Segmentation.MaxSegments)
	assert.Equal(t, 50, s.Training.Epochs)
	assert.Equal(t, "yolov8n-cls.pt", s.Training.DefaultModel)
	assert.Equal(t, 60*time.Second, s.Codec.Timeout)
	assert.Equal(t, filepath.Join("/srv/lab", "results"), s.Storage.ResultsDir)
	assert.Equal(t, filepath.Join("/srv/lab", "segmentlab.db"), s.Database.SQLite.Path)
}

func TestLoadWithOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
storage:
  datadir: /srv/lab
  resultsdir: /mnt/results
segmentation:
  segmentduration: 5
  overlap: 25
codec:
  timeout: 2m
queue:
  workers: 4
`)
	s, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.InDelta(t, 5.0, s.Segmentation.SegmentDuration, 0)
	assert.InDelta(t, 25.0, s.Segmentation.Overlap, 0)
	assert.Equal(t, 2*time.Minute, s.Codec.Timeout)
	assert.Equal(t, 4, s.Queue.Workers)
	assert.Equal(t, "/mnt/results", s.Storage.ResultsDir, "absolute paths are kept")
}

func TestLoadWithRejectsInvalidSegmentation(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "segmentation:\n  overlap: 100\n  channels: quad\n  maxsegments: -1\n")
	_, err := LoadWith(viper.New(), path)
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 3)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	t.Parallel()

	src, err := LoadWith(viper.New(), writeConfig(t, "queue:\n  workers: 3\n"))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(out, src))

	again, err := LoadWith(viper.New(), out)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Queue.Workers)
	assert.Equal(t, src.Codec.Timeout, again.Codec.Timeout)
}

func TestLoadWithResolvesSecrets(t *testing.T) {
	t.Setenv("LAB_TEST_MQTT_PASSWORD", "hunter2")
	secretFile := filepath.Join(t.TempDir(), "dsn")
	require.NoError(t, os.WriteFile(secretFile, []byte("https://key@sentry.example/1\n"), 0o600))

	path := writeConfig(t, `
mqtt:
  password: ${LAB_TEST_MQTT_PASSWORD}
telemetry:
  dsn: file:`+secretFile+`
notification:
  urls:
    - generic://hooks.example/${LAB_TEST_HOOK:-default}
`)
	s, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "hunter2", s.MQTT.Password)
	assert.Equal(t, "https://key@sentry.example/1", s.Telemetry.DSN)
	assert.Equal(t, []string{"generic://hooks.example/default"}, s.Notification.URLs)
}
