// Package scheduler provides a tick-based deferred task runner implementing
// world.Scheduler for hosts that do not bring their own.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/warden/internal/domain/world"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
)

// DefaultInterval is one host tick at 20 ticks per second.
const DefaultInterval = 50 * time.Millisecond

// task is a deferred callback due at a given tick. seq keeps submission
// order among tasks due on the same tick.
type task struct {
	due uint64
	seq uint64
	fn  func()
}

type taskHeap []task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = task{}
	*h = old[:n-1]
	return t
}

// TickScheduler runs tasks after a number of ticks. Tasks run on the
// goroutine calling Tick, never inside After.
type TickScheduler struct {
	interval time.Duration
	logger   logger.Logger

	mu    sync.Mutex
	tick  uint64
	seq   uint64
	tasks taskHeap
}

// Option configures a TickScheduler.
type Option func(*TickScheduler)

// WithInterval sets the wall-clock length of one tick used by Run.
func WithInterval(d time.Duration) Option {
	return func(s *TickScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(l logger.Logger) Option {
	return func(s *TickScheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler at tick zero.
func New(opts ...Option) *TickScheduler {
	s := &TickScheduler{
		interval: DefaultInterval,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ world.Scheduler = (*TickScheduler)(nil)

// After queues fn to run ticks ticks from now. Values below one run on the
// next tick.
func (s *TickScheduler) After(ticks int, fn func()) {
	if fn == nil {
		return
	}
	if ticks < 1 {
		ticks = 1
	}
	s.mu.Lock()
	s.seq++
	heap.Push(&s.tasks, task{due: s.tick + uint64(ticks), seq: s.seq, fn: fn})
	pending := len(s.tasks)
	s.mu.Unlock()
	metrics.UpdateSchedulerPending(pending)
}

// Tick advances the clock by one and runs every task now due, in due order
// then submission order. Tasks scheduled by a running task go to later ticks.
func (s *TickScheduler) Tick() {
	s.mu.Lock()
	s.tick++
	now := s.tick
	var due []task
	for len(s.tasks) > 0 && s.tasks[0].due <= now {
		due = append(due, heap.Pop(&s.tasks).(task))
	}
	pending := len(s.tasks)
	s.mu.Unlock()

	metrics.RecordSchedulerTick()
	for _, t := range due {
		s.run(t)
	}
	metrics.UpdateSchedulerPending(pending)
}

// Advance runs n ticks.
func (s *TickScheduler) Advance(n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

func (s *TickScheduler) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSchedulerPanic()
			s.logger.Error(context.Background(), "scheduled task panicked",
				logger.Any("panic", r),
				logger.Any("tick", t.due),
			)
		}
	}()
	t.fn()
}

// Now returns the current tick.
func (s *TickScheduler) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Pending returns the number of queued tasks.
func (s *TickScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Serve ticks at the configured interval until ctx is done. It satisfies
// suture.Service.
func (s *TickScheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *TickScheduler) String() string {
	return fmt.Sprintf("tick-scheduler(%s)", s.interval)
}
