package taskqueue

import (
	"context"
	"fmt"
	"maps"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tphakala/segmentlab/internal/logger"
)

const (
	DefaultWorkers     = 2
	DefaultCapacity    = 100
	defaultMaxArchived = 100
)

// Options configure a Queue.
type Options struct {
	Workers     int
	Capacity    int
	MaxArchived int
	Hooks       Hooks
	Logger      logger.Logger
}

// Queue dispatches tasks to a worker pool.
type Queue struct {
	opts Options
	log  logger.Logger

	mu       sync.Mutex
	tasks    chan *Task
	stopCh   chan struct{}
	running  bool
	counter  int
	active   int
	archived []Info
	stats    Stats

	workers sync.WaitGroup
}

// New creates a stopped queue.
func New(opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxArchived <= 0 {
		opts.MaxArchived = defaultMaxArchived
	}
	log := opts.Logger
	if log == nil {
		log = GetLogger()
	}
	return &Queue{
		opts: opts,
		log:  log,
		stats: Stats{
			Workers:  opts.Workers,
			Capacity: opts.Capacity,
			Kinds:    make(map[string]KindStats),
		},
	}
}

// Start launches the workers. Tasks run with a context derived from ctx
// that is not cancelled when ctx is.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.tasks = make(chan *Task, q.opts.Capacity)
	q.stopCh = make(chan struct{})

	taskCtx := context.WithoutCancel(ctx)
	for i := range q.opts.Workers {
		q.workers.Add(1)
		go q.worker(taskCtx, i)
	}
	q.log.Info("task queue started",
		logger.Int("workers", q.opts.Workers),
		logger.Int("capacity", q.opts.Capacity))
}

// Stop refuses new tasks, lets running tasks finish and waits up to timeout.
// Pending tasks that have not started are discarded; actions implementing
// Discarder are told so after the queue lock is released.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for tasks to complete after %v", timeout)
	}

	q.mu.Lock()
	var discarded []*Task
	for len(q.tasks) > 0 {
		discarded = append(discarded, <-q.tasks)
	}
	q.stats.Pending = 0
	q.mu.Unlock()

	if len(discarded) > 0 {
		q.log.Warn("pending tasks discarded on stop", logger.Int("count", len(discarded)))
	}
	for _, task := range discarded {
		if d, ok := task.action.(Discarder); ok {
			d.Discard()
		}
	}
	return nil
}

// Enqueue adds action under kind. It never blocks: a full queue returns ErrQueueFull.
func (q *Queue) Enqueue(kind string, action Action) (*Task, error) {
	if action == nil {
		return nil, ErrNilAction
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return nil, ErrQueueStopped
	}

	q.counter++
	task := &Task{
		ID:        fmt.Sprintf("task-%d", q.counter),
		Kind:      kind,
		CreatedAt: time.Now(),
		Status:    StatusPending,
		action:    action,
	}

	ks := q.stats.Kinds[kind]
	select {
	case q.tasks <- task:
	default:
		ks.Rejected++
		q.stats.Kinds[kind] = ks
		q.stats.Rejected++
		return nil, fmt.Errorf("%w: maximum queue size (%d) reached", ErrQueueFull, q.opts.Capacity)
	}

	ks.Enqueued++
	q.stats.Kinds[kind] = ks
	q.stats.Enqueued++
	q.stats.Pending++

	q.log.Debug("task enqueued", logger.String("task_id", task.ID), logger.String("kind", kind))
	return task, nil
}

// EnqueueTyped adds a typed action with its payload.
func EnqueueTyped[T any](q *Queue, kind string, action TypedAction[T], data T) (*Task, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	return q.Enqueue(kind, typedAction[T]{action: action, data: data})
}

type typedAction[T any] struct {
	action TypedAction[T]
	data   T
}

func (a typedAction[T]) Execute(ctx context.Context) error {
	return a.action.Execute(ctx, a.data)
}

func (a typedAction[T]) Discard() {
	if d, ok := a.action.(TypedDiscarder[T]); ok {
		d.Discard(a.data)
	}
}

func (q *Queue) worker(ctx context.Context, n int) {
	defer q.workers.Done()
	for {
		// stop wins over pending work
		select {
		case <-q.stopCh:
			return
		default:
		}
		select {
		case <-q.stopCh:
			return
		case task := <-q.tasks:
			q.execute(ctx, task, n)
		}
	}
}

func (q *Queue) execute(ctx context.Context, task *Task, worker int) {
	q.mu.Lock()
	task.Status = StatusRunning
	task.StartedAt = time.Now()
	q.stats.Pending--
	q.active++
	q.mu.Unlock()

	if q.opts.Hooks.OnStart != nil {
		q.opts.Hooks.OnStart(Info{ID: task.ID, Kind: task.Kind, Status: StatusRunning})
	}

	stack, err := runProtected(ctx, task.action)
	panicked := stack != ""
	if panicked {
		q.log.Error("task panicked",
			logger.String("task_id", task.ID),
			logger.String("kind", task.Kind),
			logger.Error(err),
			logger.String("stack", stack))
	}

	q.mu.Lock()
	task.FinishedAt = time.Now()
	elapsed := task.FinishedAt.Sub(task.StartedAt)
	task.Err = err
	ks := q.stats.Kinds[task.Kind]
	ks.TotalDuration += elapsed
	ks.MaxDuration = max(ks.MaxDuration, elapsed)
	if err != nil {
		task.Status = StatusFailed
		ks.Failed++
		ks.LastError = err.Error()
		q.stats.Failed++
		if panicked {
			ks.Panics++
		}
	} else {
		task.Status = StatusCompleted
		ks.Successful++
		q.stats.Successful++
	}
	q.stats.Kinds[task.Kind] = ks
	q.active--
	info := Info{ID: task.ID, Kind: task.Kind, Status: task.Status, Err: err, Duration: elapsed}
	q.archived = append(q.archived, info)
	if excess := len(q.archived) - q.opts.MaxArchived; excess > 0 {
		q.archived = q.archived[excess:]
	}
	q.mu.Unlock()

	if err != nil {
		q.log.Warn("task failed",
			logger.String("task_id", task.ID),
			logger.String("kind", task.Kind),
			logger.Int("worker", worker),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
	} else {
		q.log.Info("task completed",
			logger.String("task_id", task.ID),
			logger.String("kind", task.Kind),
			logger.Duration("elapsed", elapsed))
	}

	if q.opts.Hooks.OnFinish != nil {
		q.opts.Hooks.OnFinish(info)
	}
}

// runProtected converts a panic in action into an error and returns the
// stack of the panicking goroutine.
func runProtected(ctx context.Context, action Action) (stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = string(debug.Stack())
			err = fmt.Errorf("task execution panicked: %v", r)
		}
	}()
	return "", action.Execute(ctx)
}

// Stats returns a snapshot of the queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Running = q.active
	s.Kinds = maps.Clone(q.stats.Kinds)
	return s
}

// Recent returns the most recently finished tasks, oldest first.
func (q *Queue) Recent() []Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Info, len(q.archived))
	copy(out, q.archived)
	return out
}

// IsRunning reports whether the queue accepts tasks.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
