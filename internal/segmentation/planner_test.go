package segmentation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/errors"
)

func TestPlanTwoSecondsHalfOverlap(t *testing.T) {
	t.Parallel()

	windows, err := Plan(5.0, ParamsFromPercent(2.0, 50))
	require.NoError(t, err)
	require.Len(t, windows, 4)

	assert.Equal(t, "00:02.000 - 00:04.000", windows[2].String())
	assert.InDelta(t, 3.0, windows[3].Start, 1e-12)
	assert.InDelta(t, 5.0, windows[3].End, 1e-12)
}

func TestCountMatchesFormula(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		total   float64
		seg     float64
		overlap float64
		want    int
	}{
		{"exact fit no overlap", 10, 2, 0, 5},
		{"partial tail dropped", 9.9, 2, 0, 4},
		{"shorter than one segment", 1.5, 2, 0.5, 0},
		{"exactly one segment", 2, 2, 0.5, 1},
		{"zero duration", 0, 2, 0, 0},
		{"high overlap", 3, 1, 0.9, 21},
		{"third overlap", 60, 3, 1.0 / 3, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Params{SegmentLength: tt.seg, Overlap: tt.overlap}
			n, err := Count(tt.total, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			windows, err := Plan(tt.total, p)
			require.NoError(t, err)
			assert.Len(t, windows, n)
			for _, w := range windows {
				assert.LessOrEqual(t, w.End, tt.total+epsilon, "window %d exceeds duration", w.Index)
			}
		})
	}
}

func TestWindowAtMatchesPlan(t *testing.T) {
	t.Parallel()

	p := ParamsFromPercent(2.5, 40)
	windows, err := Plan(123.4, p)
	require.NoError(t, err)
	for i, w := range windows {
		again := WindowAt(i, p)
		assert.Equal(t, w, again)
		assert.InDelta(t, float64(i)*p.Hop(), w.Start, 1e-9)
		assert.InDelta(t, w.Start+2.5, w.End, 1e-9)
	}
}

func TestInvalidParameters(t *testing.T) {
	t.Parallel()

	bad := []Params{
		{SegmentLength: 0, Overlap: 0},
		{SegmentLength: -1, Overlap: 0},
		{SegmentLength: 2, Overlap: 1},
		{SegmentLength: 2, Overlap: -0.1},
		{SegmentLength: math.NaN(), Overlap: 0},
	}
	for _, p := range bad {
		_, err := Plan(10, p)
		require.Error(t, err, "%+v", p)
		assert.True(t, errors.Is(err, errors.ErrInvalidParameter))
	}

	_, err := Plan(-1, Params{SegmentLength: 1})
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))
}

func TestPlanWithinRejectsTooManyWindows(t *testing.T) {
	t.Parallel()

	p := Params{SegmentLength: 1e-6}
	n, err := Count(60, p)
	require.NoError(t, err)
	assert.InDelta(t, 60_000_000, n, 1)

	_, err = PlanWithin(60, p, 10_000)
	require.ErrorIs(t, err, errors.ErrInvalidParameter)

	windows, err := PlanWithin(5.0, ParamsFromPercent(2.0, 50), 4)
	require.NoError(t, err)
	assert.Len(t, windows, 4)

	windows, err = PlanWithin(5.0, ParamsFromPercent(2.0, 50), 0)
	require.NoError(t, err)
	assert.Len(t, windows, 4, "zero disables the limit")

	_, err = Count(math.Inf(1), Params{SegmentLength: 1})
	require.ErrorIs(t, err, errors.ErrInvalidParameter)
	_, err = Count(1e12, Params{SegmentLength: 1e-3})
	require.ErrorIs(t, err, errors.ErrInvalidParameter)
}

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:00.000", FormatTimestamp(0))
	assert.Equal(t, "00:01.500", FormatTimestamp(1.5))
	assert.Equal(t, "01:05.250", FormatTimestamp(65.25))
	assert.Equal(t, "75:00.000", FormatTimestamp(4500))
	assert.Equal(t, "00:00.333", FormatTimestamp(1.0/3))
}
