// Package jobstate implements the lifecycle shared by audio processing jobs
// and training runs: PENDING, then running, then exactly one terminal state.
//
// A Machine owns the in-memory view of one job and commits every change
// through a Committer. Progress only moves forward while running and is
// committed only when its integer value changes.
package jobstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/tphakala/segmentlab/internal/errors"
)

// Kind distinguishes the two job families.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindTraining Kind = "training"
)

// Phase is the kind-independent lifecycle position.
type Phase int

const (
	PhasePending Phase = iota
	PhaseRunning
	PhaseSucceeded
	PhaseFailed
)

// Terminal reports whether no further transition is allowed.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// String returns a short name for logs.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRunning:
		return "running"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var statusNames = map[Kind][4]string{
	KindAudio:    {"PENDING", "PROCESSING", "COMPLETED", "FAILED"},
	KindTraining: {"PENDING", "RUNNING", "SUCCESS", "FAILURE"},
}

// startProgress is the progress committed on entering the running phase.
var startProgress = map[Kind]int{
	KindAudio:    0,
	KindTraining: 5,
}

// Status returns the persisted status string for phase p of kind k.
func (k Kind) Status(p Phase) string {
	return statusNames[k][p]
}

// ParsePhase maps a persisted status string back to a phase.
func (k Kind) ParsePhase(status string) (Phase, error) {
	for i, name := range statusNames[k] {
		if name == status {
			return Phase(i), nil
		}
	}
	return PhasePending, fmt.Errorf("unknown %s status %q", k, status)
}

// ErrInvalidTransition is returned when a transition is not allowed from the current phase.
var ErrInvalidTransition = errors.NewStd("invalid job state transition")

// Committer persists a state change. Implementations write status, progress
// and error message in one statement.
type Committer interface {
	Commit(ctx context.Context, status string, progress int, errMsg string) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(ctx context.Context, status string, progress int, errMsg string) error

// Commit calls f.
func (f CommitterFunc) Commit(ctx context.Context, status string, progress int, errMsg string) error {
	return f(ctx, status, progress, errMsg)
}

// Snapshot describes a committed state, passed to observers.
type Snapshot struct {
	Kind     Kind
	ID       uint
	Phase    Phase
	Status   string
	Progress int
	Err      string
}

// Observer is notified after every successful commit.
type Observer func(Snapshot)

// Machine tracks one job. It is safe for concurrent use.
type Machine struct {
	kind      Kind
	id        uint
	committer Committer
	observers []Observer

	mu       sync.Mutex
	phase    Phase
	progress int
}

// New creates a Machine for a job currently in PENDING.
func New(kind Kind, id uint, committer Committer, observers ...Observer) *Machine {
	return &Machine{
		kind:      kind,
		id:        id,
		committer: committer,
		observers: observers,
		phase:     PhasePending,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Progress returns the last committed progress.
func (m *Machine) Progress() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

// Start moves PENDING to running and resets progress to the kind's start value.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhasePending {
		return m.transitionError(PhaseRunning)
	}
	return m.commitLocked(ctx, PhaseRunning, startProgress[m.kind], "")
}

// Advance commits progress p if it is larger than the current value.
// Running progress is capped at 99; 100 is reserved for success.
func (m *Machine) Advance(ctx context.Context, p int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRunning {
		return m.transitionError(PhaseRunning)
	}
	p = min(p, 99)
	if p <= m.progress {
		return nil
	}
	return m.commitLocked(ctx, PhaseRunning, p, "")
}

// Succeed moves running to the success state with progress 100.
func (m *Machine) Succeed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRunning {
		return m.transitionError(PhaseSucceeded)
	}
	return m.commitLocked(ctx, PhaseSucceeded, 100, "")
}

// Fail moves a non-terminal job to the failure state, keeping the last
// progress. It returns cause unchanged so callers can re-raise it; a commit
// failure is joined onto cause.
func (m *Machine) Fail(ctx context.Context, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase.Terminal() {
		return cause
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := m.commitLocked(ctx, PhaseFailed, m.progress, msg); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Sink returns a ProgressSink that maps done/total into [lo, hi].
func (m *Machine) Sink(lo, hi int) ProgressSink {
	return &rangeSink{machine: m, lo: lo, hi: hi}
}

func (m *Machine) commitLocked(ctx context.Context, phase Phase, progress int, errMsg string) error {
	status := m.kind.Status(phase)
	if err := m.committer.Commit(ctx, status, progress, errMsg); err != nil {
		return errors.New(err).
			Component("jobstate").
			Category(errors.CategoryDatabase).
			Context("kind", string(m.kind)).
			Context("job_id", m.id).
			Context("status", status).
			Build()
	}
	m.phase = phase
	m.progress = progress

	snap := Snapshot{Kind: m.kind, ID: m.id, Phase: phase, Status: status, Progress: progress, Err: errMsg}
	for _, obs := range m.observers {
		obs(snap)
	}
	return nil
}

func (m *Machine) transitionError(to Phase) error {
	return errors.New(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.phase, to)).
		Component("jobstate").
		Category(errors.CategoryState).
		Context("kind", string(m.kind)).
		Context("job_id", m.id).
		Build()
}
