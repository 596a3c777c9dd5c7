package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/taskqueue"
)

func TestPipelineMetricsExposed(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.TaskStarted("process_audio")
	m.Pipeline.TaskFinished("process_audio", 2*time.Second, nil)
	m.Pipeline.TaskStarted("train_model")
	m.Pipeline.TaskFinished("train_model", time.Second, errors.New("boom"))
	m.Pipeline.AddSegments(4)
	m.Pipeline.Prediction("onnx")
	m.Pipeline.Commit("audio", "COMPLETED")

	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.TasksFinished.WithLabelValues("process_audio", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.TasksFinished.WithLabelValues("train_model", "failure")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Pipeline.TasksRunning), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.Pipeline.SegmentsCreated), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "segmentlab_segments_created_total 4")
	assert.Contains(t, body, `segmentlab_predictions_total{variant="onnx"} 1`)
	assert.Contains(t, body, "segmentlab_mqtt_connection_status 0")
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.MQTT.UpdateConnectionStatus(true)
	m.MQTT.Published(time.Now(), nil)
	m.MQTT.Published(time.Now(), errors.New("timeout"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTT.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTT.MessagesDelivered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTT.Errors), 0)
}

func TestTaskHooks(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	hooks := m.TaskHooks()

	hooks.OnStart(taskqueue.Info{Kind: "auto_label"})
	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.TasksRunning), 0)
	hooks.OnFinish(taskqueue.Info{Kind: "auto_label", Duration: time.Second, Err: errors.New("missing manifest")})

	assert.InDelta(t, 0, testutil.ToFloat64(m.Pipeline.TasksRunning), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.TasksStarted.WithLabelValues("auto_label")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.TasksFinished.WithLabelValues("auto_label", "failure")), 0)
}
