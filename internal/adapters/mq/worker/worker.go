// Package worker runs the asynchronous dispatch path: a pool of workers, one
// per queue shard, each handling the move events of the entities hashed to it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/warden/internal/adapters/mq/queue"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultShardCapacity  = 1024
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// ErrPoolStopped is returned by Shutdown when called twice.
var ErrPoolStopped = errors.New("worker pool already stopped")

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Handler handles one move event synchronously.
type Handler interface {
	HandleMove(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// HandleMove calls f.
func (f HandlerFunc) HandleMove(ctx context.Context, ev Event) error { return f(ctx, ev) } //nolint:gocritic // hugeParam: Event is passed by value like the queue

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// InMemoryWorker drains one queue in order.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string
	done    chan struct{}
	logger  logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		handler: h,
		name:    "worker",
		done:    make(chan struct{}),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run handles events until the queue is closed and drained, or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, ev)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, ev Event) { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	err := w.handler.HandleMove(ctx, ev)
	metrics.RecordHandleLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		w.logger.Debug(ctx, "event not handled",
			logger.String("worker", w.name),
			logger.String("entity", ev.Entity.String()),
			logger.Error(err),
		)
	}
}

// Pool owns one queue and one worker per shard. Events of one entity always
// hash to the same shard, so they are handled in submission order.
type Pool struct {
	handler  Handler
	shards   []*queue.InMemoryQueue
	workers  []*InMemoryWorker
	capacity int
	logger   logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
}

// NewPool creates a pool with shardCount shards; non-positive counts use
// the number of CPUs.
func NewPool(shardCount int, h Handler, opts ...PoolOption) *Pool {
	if shardCount < 1 {
		shardCount = runtime.NumCPU()
	}
	p := &Pool{
		handler:  h,
		capacity: defaultShardCapacity,
		logger:   logger.Nop(),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.shards = make([]*queue.InMemoryQueue, shardCount)
	p.workers = make([]*InMemoryWorker, shardCount)
	for i := range p.shards {
		p.shards[i] = queue.NewInMemoryQueue(queue.WithCapacity(p.capacity))
		p.workers[i] = NewInMemoryWorker(p.shards[i], h,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}

	metrics.UpdateWorkerCount(shardCount)
	metrics.UpdateQueueCapacity(shardCount * p.capacity)
	metrics.UpdateQueueSize(0)
	return p
}

// Shards returns the number of shards.
func (p *Pool) Shards() int { return len(p.shards) }

// ShardFor returns the shard index events of id are routed to.
func (p *Pool) ShardFor(id uuid.UUID) int {
	h := fnv.New64a()
	_, _ = h.Write(id[:])
	return int(h.Sum64() % uint64(len(p.shards)))
}

// Submit routes ev to its entity's shard without blocking. It returns false
// when the shard is full or the pool is stopped.
func (p *Pool) Submit(ctx context.Context, ev Event) bool { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	return p.shards[p.ShardFor(ev.Entity)].Enqueue(ctx, ev)
}

// Len returns the number of queued events across all shards.
func (p *Pool) Len(ctx context.Context) int {
	total := 0
	for _, q := range p.shards {
		total += q.Len(ctx)
	}
	return total
}

// Start launches the workers. Workers outlive ctx cancellation until
// Shutdown closes their queues, so queued events are not lost.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx := context.WithoutCancel(ctx)
		for _, w := range p.workers {
			go w.Run(runCtx)
		}
		go p.startMetricsUpdater(ctx)
	})
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(p.Len(ctx))
		}
	}
}

// Shutdown closes every shard and waits for the workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	err := ErrPoolStopped
	p.stopOnce.Do(func() {
		err = nil
		close(p.stopped)
		for _, q := range p.shards {
			_ = q.Close()
		}
		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-ctx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("shutdown worker %d: %w", i, ctx.Err())
				return
			}
		}
		metrics.UpdateQueueSize(0)
	})
	return err
}

// Serve runs the pool until ctx is done, then drains it. It satisfies
// suture.Service.
func (p *Pool) Serve(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), poolShutdownTimeout)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ErrPoolStopped) {
		return err
	}
	return ctx.Err()
}
