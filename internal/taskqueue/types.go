// Package taskqueue runs pipeline tasks on a fixed pool of workers.
// Tasks are fire-and-forget: there are no retries, no per-task timeout and
// stopping the queue lets running tasks finish.
package taskqueue

import (
	"context"
	"time"

	"github.com/tphakala/segmentlab/internal/errors"
)

// Common errors returned by queue operations
var (
	ErrNilAction    = errors.NewStd("cannot enqueue nil action")
	ErrQueueStopped = errors.NewStd("task queue is not running")
	ErrQueueFull    = errors.NewStd("task queue is full")
)

// Action is a unit of work.
type Action interface {
	Execute(ctx context.Context) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context) error

// Execute implements Action.
func (f ActionFunc) Execute(ctx context.Context) error { return f(ctx) }

// TypedAction executes with a typed payload.
type TypedAction[T any] interface {
	Execute(ctx context.Context, data T) error
}

// Discarder is implemented by actions that hold resources which must be
// released when Stop drops the task before it ran.
type Discarder interface {
	Discard()
}

// TypedDiscarder is the payload form of Discarder.
type TypedDiscarder[T any] interface {
	Discard(data T)
}

// Status is the state of a task inside the queue.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

// String returns a string representation of the task status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Task is one enqueued action.
type Task struct {
	ID         string
	Kind       string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	Err        error

	action Action
}

// Info is a copy of a task's public fields.
type Info struct {
	ID       string
	Kind     string
	Status   Status
	Err      error
	Duration time.Duration
}

// KindStats counts outcomes for one task kind.
type KindStats struct {
	Enqueued   int
	Successful int
	Failed     int
	Rejected   int
	Panics     int

	TotalDuration time.Duration
	MaxDuration   time.Duration
	LastError     string
}

// Stats is a point-in-time snapshot of the queue.
type Stats struct {
	Workers  int
	Capacity int
	Pending  int
	Running  int

	Enqueued   int
	Successful int
	Failed     int
	Rejected   int

	Kinds map[string]KindStats
}

// Hooks observe task execution. Both are optional and called from worker goroutines.
type Hooks struct {
	OnStart  func(Info)
	OnFinish func(Info)
}
