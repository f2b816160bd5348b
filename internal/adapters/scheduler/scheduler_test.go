package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTickScheduler(t *testing.T) {
	Convey("Given a tick scheduler", t, func() {
		s := New()

		Convey("When a task is scheduled two ticks out", func() {
			ran := false
			s.After(2, func() { ran = true })
			So(s.Pending(), ShouldEqual, 1)

			Convey("Then it does not run on the first tick", func() {
				s.Tick()
				So(ran, ShouldBeFalse)

				Convey("But runs on the second", func() {
					s.Tick()
					So(ran, ShouldBeTrue)
					So(s.Pending(), ShouldEqual, 0)
					So(s.Now(), ShouldEqual, 2)
				})
			})
		})

		Convey("When non-positive delays are used they run on the next tick", func() {
			var n int
			s.After(0, func() { n++ })
			s.After(-5, func() { n++ })
			s.Tick()
			So(n, ShouldEqual, 2)
		})

		Convey("When tasks share a due tick they run in submission order", func() {
			var order []int
			s.After(3, func() { order = append(order, 1) })
			s.After(1, func() { order = append(order, 0) })
			s.After(3, func() { order = append(order, 2) })
			s.Advance(3)
			So(order, ShouldResemble, []int{0, 1, 2})
		})

		Convey("When a task schedules another it runs on a later tick", func() {
			var inner bool
			s.After(1, func() {
				s.After(1, func() { inner = true })
			})
			s.Tick()
			So(inner, ShouldBeFalse)
			s.Tick()
			So(inner, ShouldBeTrue)
		})

		Convey("When a task panics the others still run", func() {
			var ok bool
			s.After(1, func() { panic("boom") })
			s.After(1, func() { ok = true })
			So(func() { s.Tick() }, ShouldNotPanic)
			So(ok, ShouldBeTrue)
		})

		Convey("When nil tasks are scheduled they are dropped", func() {
			s.After(1, nil)
			So(s.Pending(), ShouldEqual, 0)
		})
	})
}

func TestTickSchedulerServe(t *testing.T) {
	Convey("Given a fast scheduler serving in the background", t, func() {
		s := New(WithInterval(time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		var ran atomic.Bool
		s.After(2, func() { ran.Store(true) })

		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx) }()

		deadline := time.Now().Add(2 * time.Second)
		for !ran.Load() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()

		So(ran.Load(), ShouldBeTrue)
		So(<-done, ShouldEqual, context.Canceled)
	})
}
