// Package segmentation plans the fixed-length, possibly overlapping windows a
// recording is cut into. The same arithmetic is used when slicing, when
// displaying segment times and when exporting, so window i always starts at
// exactly i*hop.
package segmentation

import (
	"fmt"
	"math"

	"github.com/tphakala/segmentlab/internal/errors"
)

// epsilon absorbs float error when the last window ends exactly at the recording end.
const epsilon = 1e-9

// maxCount bounds Count so the float result always converts to int.
const maxCount = math.MaxInt32

// Window is one planned segment, [Start, End) in seconds.
type Window struct {
	Index int
	Start float64
	End   float64
}

// Params describes how a recording is segmented.
type Params struct {
	SegmentLength float64 // seconds, > 0
	Overlap       float64 // ratio in [0,1)
}

// Hop returns the distance between consecutive window starts.
func (p Params) Hop() float64 {
	return p.SegmentLength * (1 - p.Overlap)
}

// Validate rejects parameters that cannot produce a forward-moving plan.
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.SegmentLength) || p.SegmentLength <= 0:
		return invalid("segment length must be positive, got %v", p.SegmentLength)
	case math.IsNaN(p.Overlap) || p.Overlap < 0 || p.Overlap >= 1:
		return invalid("overlap must be in [0,1), got %v", p.Overlap)
	case p.Hop() <= 0:
		return invalid("hop must be positive, got %v", p.Hop())
	}
	return nil
}

// ParamsFromPercent builds Params from an overlap given in percent.
func ParamsFromPercent(segmentLength, overlapPercent float64) Params {
	return Params{SegmentLength: segmentLength, Overlap: overlapPercent / 100}
}

// Count returns the number of complete windows that fit in total seconds:
// floor((total-seg)/hop)+1 when total >= seg, otherwise 0.
func Count(total float64, p Params) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if total < 0 || math.IsNaN(total) {
		return 0, invalid("duration must not be negative, got %v", total)
	}
	if total+epsilon < p.SegmentLength {
		return 0, nil
	}
	n := math.Floor((total-p.SegmentLength)/p.Hop()+epsilon) + 1
	if math.IsInf(total, 1) || n > maxCount {
		return 0, invalid("%v seconds at a hop of %v seconds yields too many windows", total, p.Hop())
	}
	return int(n), nil
}

// Plan returns the ordered windows for a recording of total seconds.
// A trailing partial window is dropped.
func Plan(total float64, p Params) ([]Window, error) {
	n, err := Count(total, p)
	if err != nil {
		return nil, err
	}
	return plan(n, p), nil
}

// PlanWithin is Plan refusing recordings that yield more than limit windows.
// A limit of zero or less disables the check.
func PlanWithin(total float64, p Params, limit int) ([]Window, error) {
	n, err := Count(total, p)
	if err != nil {
		return nil, err
	}
	if limit > 0 && n > limit {
		return nil, invalid("%d segments exceed the limit of %d, use longer segments or less overlap", n, limit)
	}
	return plan(n, p), nil
}

func plan(n int, p Params) []Window {
	windows := make([]Window, n)
	for i := range windows {
		windows[i] = WindowAt(i, p)
	}
	return windows
}

// WindowAt recomputes window i without planning the whole recording.
func WindowAt(i int, p Params) Window {
	start := float64(i) * p.Hop()
	return Window{Index: i, Start: start, End: start + p.SegmentLength}
}

// FormatTimestamp renders seconds as MM:SS.mmm. Minutes are not wrapped into hours.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms%60000)/1000, ms%1000)
}

// String renders the window as "MM:SS.mmm - MM:SS.mmm".
func (w Window) String() string {
	return FormatTimestamp(w.Start) + " - " + FormatTimestamp(w.End)
}

func invalid(format string, args ...any) error {
	return errors.New(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidParameter}, args...)...)).
		Component("segmentation").
		Category(errors.CategoryValidation).
		Build()
}
