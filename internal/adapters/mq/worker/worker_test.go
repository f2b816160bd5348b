package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	queue "github.com/okian/warden/internal/adapters/mq/queue"
	worker "github.com/okian/warden/internal/adapters/mq/worker"
	model "github.com/okian/warden/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	eventChan chan queue.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Event { return mq.eventChan }

type recordingHandler struct {
	mu     sync.Mutex
	events map[uuid.UUID][]float64
	total  int
	fail   error
	delay  time.Duration
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(map[uuid.UUID][]float64)}
}

func (h *recordingHandler) HandleMove(_ context.Context, ev model.MoveEvent) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[ev.Entity] = append(h.events[ev.Entity], ev.To.Y())
	h.total++
	return h.fail
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func moveAt(id uuid.UUID, y float64) model.MoveEvent {
	return model.MoveEvent{Entity: id, From: mgl64.Vec3{0, y + 1, 0}, To: mgl64.Vec3{0, y, 0}}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a mock queue", t, func() {
		q := newMockQueue()
		h := newRecordingHandler()
		w := worker.NewInMemoryWorker(q, h, worker.WithName("w-test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When events arrive they are handled in order", func() {
			id := uuid.New()
			q.eventChan <- moveAt(id, 3)
			q.eventChan <- moveAt(id, 2)
			q.eventChan <- moveAt(id, 1)
			convey.So(waitFor(func() bool { return h.count() == 3 }), convey.ShouldBeTrue)
			h.mu.Lock()
			convey.So(h.events[id], convey.ShouldResemble, []float64{3, 2, 1})
			h.mu.Unlock()
		})

		convey.Convey("When the handler fails the worker keeps going", func() {
			h.fail = errors.New("unknown entity")
			q.eventChan <- moveAt(uuid.New(), 1)
			q.eventChan <- moveAt(uuid.New(), 2)
			convey.So(waitFor(func() bool { return h.count() == 2 }), convey.ShouldBeTrue)
		})

		convey.Convey("When the queue closes the worker stops", func() {
			close(q.eventChan)
			select {
			case <-w.Done():
			case <-time.After(time.Second):
				t.Error("worker did not stop")
			}
		})

		convey.Convey("When the context is cancelled the worker stops", func() {
			cancel()
			select {
			case <-w.Done():
			case <-time.After(time.Second):
				t.Error("worker did not stop")
			}
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool with four shards", t, func() {
		h := newRecordingHandler()
		pool := worker.NewPool(4, h, worker.WithShardCapacity(256))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.So(pool.Shards(), convey.ShouldEqual, 4)

		convey.Convey("Then an entity always maps to the same shard", func() {
			id := uuid.New()
			first := pool.ShardFor(id)
			for i := 0; i < 10; i++ {
				convey.So(pool.ShardFor(id), convey.ShouldEqual, first)
			}
			convey.So(first, convey.ShouldBeBetweenOrEqual, 0, 3)
		})

		convey.Convey("When many entities submit concurrently", func() {
			pool.Start(ctx)
			entities := make([]uuid.UUID, 16)
			for i := range entities {
				entities[i] = uuid.New()
			}
			const perEntity = 50

			var wg sync.WaitGroup
			for _, id := range entities {
				wg.Add(1)
				go func(id uuid.UUID) {
					defer wg.Done()
					for y := perEntity; y > 0; y-- {
						for !pool.Submit(ctx, moveAt(id, float64(y))) {
							time.Sleep(time.Millisecond)
						}
					}
				}(id)
			}
			wg.Wait()

			convey.Convey("Then each entity's events are handled in submission order", func() {
				convey.So(waitFor(func() bool { return h.count() == len(entities)*perEntity }), convey.ShouldBeTrue)
				h.mu.Lock()
				defer h.mu.Unlock()
				for _, id := range entities {
					got := h.events[id]
					convey.So(got, convey.ShouldHaveLength, perEntity)
					for i := 1; i < len(got); i++ {
						convey.So(got[i], convey.ShouldBeLessThan, got[i-1])
					}
				}
			})
		})

		convey.Convey("When a shard is full Submit returns false without blocking", func() {
			slow := newRecordingHandler()
			small := worker.NewPool(1, slow, worker.WithShardCapacity(2))
			id := uuid.New()
			convey.So(small.Submit(ctx, moveAt(id, 1)), convey.ShouldBeTrue)
			convey.So(small.Submit(ctx, moveAt(id, 2)), convey.ShouldBeTrue)
			convey.So(small.Submit(ctx, moveAt(id, 3)), convey.ShouldBeFalse)
			convey.So(small.Len(ctx), convey.ShouldEqual, 2)
		})

		convey.Convey("When the pool shuts down queued events are drained", func() {
			h.delay = time.Millisecond
			for i := 0; i < 20; i++ {
				convey.So(pool.Submit(ctx, moveAt(uuid.New(), float64(i))), convey.ShouldBeTrue)
			}
			pool.Start(ctx)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(h.count(), convey.ShouldEqual, 20)
			convey.So(pool.Submit(ctx, moveAt(uuid.New(), 0)), convey.ShouldBeFalse)
			convey.So(errors.Is(pool.Shutdown(context.Background()), worker.ErrPoolStopped), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a pool served under a cancellable context", t, func() {
		h := newRecordingHandler()
		pool := worker.NewPool(2, h)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- pool.Serve(ctx) }()

		convey.So(waitFor(func() bool { return pool.Submit(ctx, moveAt(uuid.New(), 1)) }), convey.ShouldBeTrue)
		convey.So(waitFor(func() bool { return h.count() == 1 }), convey.ShouldBeTrue)
		cancel()
		convey.So(<-done, convey.ShouldEqual, context.Canceled)
	})

	convey.Convey("Given a non-positive shard count", t, func() {
		pool := worker.NewPool(0, worker.HandlerFunc(func(context.Context, model.MoveEvent) error { return nil }))
		convey.So(pool.Shards(), convey.ShouldBeGreaterThan, 0)
	})
}
