package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingConsumer struct {
	name string
	err  error
	mu   sync.Mutex
	got  []JobEvent
}

func (r *recordingConsumer) Name() string { return r.name }

func (r *recordingConsumer) ProcessEvent(_ context.Context, e JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return r.err
}

func (r *recordingConsumer) events() []JobEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]JobEvent(nil), r.got...)
}

type panickingConsumer struct{}

func (panickingConsumer) Name() string { return "panics" }
func (panickingConsumer) ProcessEvent(context.Context, JobEvent) error {
	panic("boom")
}

func testLogger() logger.Logger {
	return logger.NewConsoleLogger("events", logger.LogLevelError)
}

func TestBusDeliversStateMachineCommitsInOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus(Config{Logger: testLogger()})
	rec := &recordingConsumer{name: "rec"}
	require.NoError(t, bus.RegisterConsumer(rec))
	bus.Start()

	committer := jobstate.CommitterFunc(func(context.Context, string, int, string) error { return nil })
	m := jobstate.New(jobstate.KindAudio, 7, committer, bus.Observer())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Advance(ctx, 50))
	require.NoError(t, m.Succeed(ctx))

	require.NoError(t, bus.Shutdown(time.Second))

	got := rec.events()
	require.Len(t, got, 3)
	assert.Equal(t, "PROCESSING", got[0].Status)
	assert.Equal(t, 50, got[1].Progress)
	assert.Equal(t, "COMPLETED", got[2].Status)
	assert.True(t, got[2].Terminal)
	assert.Equal(t, uint(7), got[2].ID)
	assert.Equal(t, uint64(3), bus.Stats().EventsProcessed)
}

func TestBusDuplicateConsumer(t *testing.T) {
	t.Parallel()

	bus := NewBus(Config{Logger: testLogger()})
	require.NoError(t, bus.RegisterConsumer(&recordingConsumer{name: "a"}))
	assert.Error(t, bus.RegisterConsumer(&recordingConsumer{name: "a"}))
}

func TestBusDropsWhenStoppedOrFull(t *testing.T) {
	t.Parallel()

	bus := NewBus(Config{BufferSize: 1, Logger: testLogger()})
	assert.False(t, bus.TryPublish(JobEvent{ID: 1}), "not started")

	// Start without a worker draining: fill the buffer directly.
	bus.running.Store(true)
	assert.True(t, bus.TryPublish(JobEvent{ID: 1}))
	assert.False(t, bus.TryPublish(JobEvent{ID: 2}))
	assert.Equal(t, uint64(1), bus.Stats().EventsDropped)
	bus.running.Store(false)
}

func TestBusSurvivesFailingConsumers(t *testing.T) {
	t.Parallel()

	bus := NewBus(Config{Logger: testLogger()})
	failing := &recordingConsumer{name: "failing", err: errors.New("nope")}
	rec := &recordingConsumer{name: "rec"}
	require.NoError(t, bus.RegisterConsumer(panickingConsumer{}))
	require.NoError(t, bus.RegisterConsumer(failing))
	require.NoError(t, bus.RegisterConsumer(rec))
	bus.Start()

	bus.TryPublish(JobEvent{Kind: jobstate.KindTraining, ID: 3, Status: "RUNNING"})
	require.NoError(t, bus.Shutdown(time.Second))

	assert.Len(t, rec.events(), 1)
	assert.Equal(t, uint64(2), bus.Stats().ConsumerErrors)
}
