package jobstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/errors"
)

type commit struct {
	status   string
	progress int
	errMsg   string
}

type recorder struct {
	commits []commit
	failOn  string
}

func (r *recorder) Commit(_ context.Context, status string, progress int, errMsg string) error {
	if status == r.failOn {
		return errors.NewStd("write failed")
	}
	r.commits = append(r.commits, commit{status, progress, errMsg})
	return nil
}

func TestAudioLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	m := New(KindAudio, 1, rec)

	require.NoError(t, m.Start(ctx))
	sink := m.Sink(0, 100)
	for i := 1; i <= 8; i++ {
		require.NoError(t, sink.Report(ctx, i, 8))
	}
	require.NoError(t, m.Succeed(ctx))

	first := rec.commits[0]
	assert.Equal(t, commit{"PROCESSING", 0, ""}, first)
	last := rec.commits[len(rec.commits)-1]
	assert.Equal(t, commit{"COMPLETED", 100, ""}, last)

	prev := -1
	for _, c := range rec.commits {
		assert.GreaterOrEqual(t, c.progress, prev)
		assert.LessOrEqual(t, c.progress, 100)
		if c.status == "PROCESSING" {
			assert.Less(t, c.progress, 100, "100 is reserved for completion")
		}
		prev = c.progress
	}
}

func TestCommitOnlyOnChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	m := New(KindAudio, 1, rec)
	require.NoError(t, m.Start(ctx))

	sink := m.Sink(0, 100)
	for i := 1; i <= 1000; i++ {
		require.NoError(t, sink.Report(ctx, i, 1000))
	}
	// start + 99 distinct values (1..99)
	assert.Len(t, rec.commits, 100)
}

func TestTrainingRanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	m := New(KindTraining, 3, rec)

	require.NoError(t, m.Start(ctx))
	assert.Equal(t, 5, m.Progress())

	prep := m.Sink(TrainingPrepLow, TrainingPrepHigh)
	require.NoError(t, prep.Report(ctx, 1, 3))
	assert.Equal(t, 5, m.Progress(), "5 is already above 1/3 of 15")
	require.NoError(t, prep.Report(ctx, 3, 3))
	assert.Equal(t, 15, m.Progress())

	epochs := m.Sink(TrainingEpochLow, TrainingEpochHigh)
	require.NoError(t, epochs.Report(ctx, 1, 50))
	assert.Equal(t, 16, m.Progress())
	require.NoError(t, epochs.Report(ctx, 25, 50))
	assert.Equal(t, 55, m.Progress())
	require.NoError(t, epochs.Report(ctx, 50, 50))
	assert.Equal(t, 95, m.Progress())

	require.NoError(t, m.Succeed(ctx))
	assert.Equal(t, "SUCCESS", rec.commits[len(rec.commits)-1].status)
}

func TestFailureKeepsProgressAndReturnsCause(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	m := New(KindTraining, 4, rec)
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Advance(ctx, 40))

	cause := errors.NewStd("trainer crashed")
	err := m.Fail(ctx, cause)
	require.ErrorIs(t, err, cause)

	last := rec.commits[len(rec.commits)-1]
	assert.Equal(t, commit{"FAILURE", 40, "trainer crashed"}, last)
	assert.Equal(t, PhaseFailed, m.Phase())
}

func TestTerminalStatesAreFinal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	m := New(KindAudio, 5, rec)
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Succeed(ctx))
	n := len(rec.commits)

	require.ErrorIs(t, m.Start(ctx), ErrInvalidTransition)
	require.ErrorIs(t, m.Advance(ctx, 50), ErrInvalidTransition)
	require.ErrorIs(t, m.Succeed(ctx), ErrInvalidTransition)

	cause := errors.NewStd("late")
	require.ErrorIs(t, m.Fail(ctx, cause), cause)
	assert.Len(t, rec.commits, n, "no commits after a terminal state")
	assert.Equal(t, PhaseSucceeded, m.Phase())
}

func TestSucceedRequiresRunning(t *testing.T) {
	t.Parallel()
	m := New(KindAudio, 6, &recorder{})
	require.ErrorIs(t, m.Succeed(context.Background()), ErrInvalidTransition)
}

func TestCommitFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{failOn: "PROCESSING"}
	m := New(KindAudio, 7, rec)

	err := m.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.Equal(t, PhasePending, m.Phase())

	cause := errors.NewStd("codec missing")
	err = m.Fail(ctx, cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, PhaseFailed, m.Phase(), "a pending job may fail directly")
}

func TestObserversSeeEveryCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var seen []Snapshot
	m := New(KindAudio, 8, &recorder{}, func(s Snapshot) { seen = append(seen, s) })

	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Advance(ctx, 30))
	require.NoError(t, m.Succeed(ctx))

	require.Len(t, seen, 3)
	assert.Equal(t, Snapshot{Kind: KindAudio, ID: 8, Phase: PhaseSucceeded, Status: "COMPLETED", Progress: 100}, seen[2])
}

func TestParsePhase(t *testing.T) {
	t.Parallel()

	p, err := KindTraining.ParsePhase("FAILURE")
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, p)

	_, err = KindAudio.ParsePhase("FAILURE")
	require.Error(t, err)
}
