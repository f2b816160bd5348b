package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/model"
)

func move(y float64) model.MoveEvent {
	return model.MoveEvent{
		Entity: uuid.New(),
		From:   mgl64.Vec3{0, y + 1, 0},
		To:     mgl64.Vec3{0, y, 0},
		At:     time.Now(),
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	event1 := move(64)
	if !q.Enqueue(ctx, event1) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	event := <-q.Dequeue(ctx)
	if event.Entity != event1.Entity {
		t.Errorf("expected %s, got %s", event1.Entity, event.Entity)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, move(1)) || !q.Enqueue(ctx, move(2)) {
		t.Fatal("expected enqueue to succeed")
	}

	// Enqueue never blocks; a full queue rejects.
	if q.Enqueue(ctx, move(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if q.Enqueue(ctx, move(1)) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_PreservesOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if !q.Enqueue(ctx, move(float64(i))) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	ch := q.Dequeue(ctx)
	for i := 0; i < 100; i++ {
		e := <-ch
		if e.To.Y() != float64(i) {
			t.Fatalf("position %d: got y=%v", i, e.To.Y())
		}
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numProducers := 10
	numEvents := 100

	var consumed sync.WaitGroup
	consumed.Add(numProducers * numEvents)
	go func() {
		for range q.Dequeue(ctx) {
			consumed.Done()
		}
	}()

	var producers sync.WaitGroup
	for i := 0; i < numProducers; i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for j := 0; j < numEvents; j++ {
				for !q.Enqueue(ctx, move(float64(j))) {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	producers.Wait()

	done := make(chan struct{})
	go func() { consumed.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for consumers")
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
	_ = q.Close()
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, move(1)) || !q.Enqueue(ctx, move(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, move(3)) {
		t.Error("expected enqueue to fail after closing")
	}

	// Buffered events drain before the channel reports closed.
	drained := 0
	for range q.Dequeue(ctx) {
		drained++
	}
	if drained != 2 {
		t.Errorf("expected 2 drained events, got %d", drained)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
