// Package events fans job state changes out to external sinks without
// blocking the workflow that produced them.
package events

import (
	"context"
	"time"

	"github.com/tphakala/segmentlab/internal/jobstate"
)

// JobEvent is one committed job state change.
type JobEvent struct {
	Kind      jobstate.Kind  `json:"kind"`
	ID        uint           `json:"id"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	Error     string         `json:"error,omitempty"`
	Terminal  bool           `json:"terminal"`
	Phase     jobstate.Phase `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
}

// FromSnapshot converts a state machine snapshot into an event.
func FromSnapshot(s jobstate.Snapshot) JobEvent {
	return JobEvent{
		Kind:      s.Kind,
		ID:        s.ID,
		Status:    s.Status,
		Progress:  s.Progress,
		Error:     s.Err,
		Terminal:  s.Phase.Terminal(),
		Phase:     s.Phase,
		Timestamp: time.Now(),
	}
}

// Consumer processes job events.
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent handles a single event
	ProcessEvent(ctx context.Context, event JobEvent) error
}

// BusStats contains runtime statistics for monitoring
type BusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
