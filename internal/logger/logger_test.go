package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestSlogLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.Debug("hidden")
	log.Info("shown", Int("segments", 4))
	log.Warn("also shown")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "shown", recs[0]["msg"])
	assert.InDelta(t, 4, recs[0]["segments"], 0)
}

func TestModuleAndWithFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC).
		Module("pipeline").
		Module("process").
		With(Int64("job_id", 12))

	log.Info("started", Float64("ratio", 0.123456), Duration("elapsed", 1500*time.Millisecond))

	recs := decodeLines(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "pipeline.process", recs[0]["module"])
	assert.InDelta(t, 12, recs[0]["job_id"], 0)
	assert.InDelta(t, 0.123, recs[0]["ratio"], 1e-9)
	assert.Equal(t, "1.5s", recs[0]["elapsed"])
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "req-7")).Info("request")
	log.WithContext(context.Background()).Info("plain")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "req-7", recs[0]["trace_id"])
	assert.NotContains(t, recs[1], "trace_id")
}

func TestErrorFieldNil(t *testing.T) {
	t.Parallel()

	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestTextHandlerFormat(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := &moduleLogger{
		module: "codec",
		level:  traceLevelValue,
	}
	log.logger = slog.New(newTextHandler(buf, traceLevelValue, time.UTC))

	log.Trace("render", String("file", "a b.wav"), Int("index", 2))

	assert.Equal(t, "TRACE [codec] render file=\"a b.wav\" index=2\n", buf.String())
}

func TestCentralLoggerWritesRotatingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "app.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"quiet": "error"},
	})
	require.NoError(t, err)

	cl.Module("datastore").Debug("opened", String("driver", "sqlite"))
	cl.Module("quiet").Warn("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"module":"datastore"`)
	assert.NotContains(t, string(data), "suppressed")
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}
