package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/logger"
)

// DefaultBufferSize is used when Config.BufferSize is not positive.
const DefaultBufferSize = 1000

// Config holds event bus configuration
type Config struct {
	BufferSize      int
	ConsumerTimeout time.Duration // per event and consumer, 0 means none
	Logger          logger.Logger
}

// Bus delivers events to consumers from a single worker so that events of
// one job reach each consumer in commit order. Publishing never blocks; when
// the buffer is full the event is dropped.
type Bus struct {
	eventChan chan JobEvent
	timeout   time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	consumers []Consumer
	stats     BusStats
	log       logger.Logger
}

// NewBus creates a stopped bus.
func NewBus(cfg Config) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		eventChan: make(chan JobEvent, cfg.BufferSize),
		timeout:   cfg.ConsumerTimeout,
		ctx:       ctx,
		cancel:    cancel,
		log:       cfg.Logger,
	}
}

// RegisterConsumer adds a consumer. Names must be unique.
func (b *Bus) RegisterConsumer(consumer Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	b.consumers = append(b.consumers, consumer)
	b.log.Info("registered event consumer", logger.String("consumer", consumer.Name()))
	return nil
}

// Start launches the delivery worker. It is a no-op when already running.
func (b *Bus) Start() {
	if b.running.Swap(true) {
		return
	}
	b.wg.Add(1)
	go b.worker()
}

// TryPublish queues event without blocking and reports whether it was accepted.
func (b *Bus) TryPublish(event JobEvent) bool {
	if b == nil || !b.running.Load() {
		return false
	}
	select {
	case b.eventChan <- event:
		atomic.AddUint64(&b.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&b.stats.EventsDropped, 1)
		b.log.Debug("event dropped due to full buffer",
			logger.String("kind", string(event.Kind)),
			logger.Uint64("id", uint64(event.ID)),
			logger.String("status", event.Status))
		return false
	}
}

// Observer returns a jobstate observer publishing every commit on the bus.
func (b *Bus) Observer() jobstate.Observer {
	return func(s jobstate.Snapshot) {
		b.TryPublish(FromSnapshot(s))
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			b.drain()
			return
		case event := <-b.eventChan:
			b.dispatch(event)
		}
	}
}

// drain delivers what is still buffered at shutdown.
func (b *Bus) drain() {
	for {
		select {
		case event := <-b.eventChan:
			b.dispatch(event)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(event JobEvent) {
	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, consumer := range consumers {
		b.deliver(consumer, event)
	}
}

func (b *Bus) deliver(consumer Consumer, event JobEvent) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&b.stats.ConsumerErrors, 1)
			b.log.Error("consumer panicked",
				logger.String("consumer", consumer.Name()),
				logger.Any("panic", r))
		}
	}()

	ctx := context.Background()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	if err := consumer.ProcessEvent(ctx, event); err != nil {
		atomic.AddUint64(&b.stats.ConsumerErrors, 1)
		b.log.Warn("consumer error",
			logger.String("consumer", consumer.Name()),
			logger.String("kind", string(event.Kind)),
			logger.Uint64("id", uint64(event.ID)),
			logger.Error(err))
		return
	}
	atomic.AddUint64(&b.stats.EventsProcessed, 1)
}

// Shutdown stops accepting events, delivers the buffered ones and waits for
// the worker up to timeout.
func (b *Bus) Shutdown(timeout time.Duration) error {
	if !b.running.Swap(false) {
		return nil
	}
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		b.log.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// Stats returns current event bus statistics
func (b *Bus) Stats() BusStats {
	return BusStats{
		EventsReceived:  atomic.LoadUint64(&b.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&b.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&b.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&b.stats.ConsumerErrors),
	}
}
