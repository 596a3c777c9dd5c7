package jobstate

import "context"

// ProgressSink receives work-unit progress from a long running step.
type ProgressSink interface {
	Report(ctx context.Context, done, total int) error
}

// Standard sub-ranges of the training lifecycle.
const (
	TrainingPrepLow   = 0
	TrainingPrepHigh  = 15
	TrainingEpochLow  = 15
	TrainingEpochHigh = 95
)

type rangeSink struct {
	machine *Machine
	lo, hi  int
}

// Report commits lo + floor(done*(hi-lo)/total). Calls with total <= 0 are ignored.
func (s *rangeSink) Report(ctx context.Context, done, total int) error {
	if total <= 0 {
		return nil
	}
	done = max(0, min(done, total))
	return s.machine.Advance(ctx, s.lo+done*(s.hi-s.lo)/total)
}

// Discard is a ProgressSink that ignores every report.
var Discard ProgressSink = discardSink{}

type discardSink struct{}

func (discardSink) Report(context.Context, int, int) error { return nil }
