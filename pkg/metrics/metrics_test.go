package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "warden")
				So(manager.subsystem, ShouldEqual, "detection")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("nofall"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "nofall")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.constLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When empty options are given", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "warden")
				So(manager.subsystem, ShouldEqual, "detection")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a detection", func() {
			before := testutil.ToFloat64(globalManager.detectionsRaised.WithLabelValues("nofall", "A"))
			RecordDetection("nofall", "A", 50)

			Convey("Then the counter and certainty gauge should move", func() {
				So(testutil.ToFloat64(globalManager.detectionsRaised.WithLabelValues("nofall", "A")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.certainty.WithLabelValues("nofall", "A")), ShouldEqual, 50)
			})
		})

		Convey("When recording verifications and landings", func() {
			before := testutil.ToFloat64(globalManager.verifications.WithLabelValues("aborted"))
			RecordVerification("aborted")
			RecordLanding("exempt")

			Convey("Then the labelled counters should increase", func() {
				So(testutil.ToFloat64(globalManager.verifications.WithLabelValues("aborted")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.landingsJudged.WithLabelValues("exempt")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateProfilesOnline(3)
			UpdateSchedulerPending(7)
			UpdateQueueSize(11)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)
			UpdateSuspectBoardEntries(2)

			Convey("Then the gauges should hold the values", func() {
				So(testutil.ToFloat64(globalManager.profilesOnline), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.schedulerPending), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 11)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.suspectBoardEntries), ShouldEqual, 2)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordEventHandled()
				RecordEventDropped("backpressure")
				RecordExpectedDamage(7)
				RecordHandleLatency(0.2)
				RecordProfileArchived()
				RecordSinkDropped("log")
				RecordSchedulerTick()
				RecordSchedulerPanic()
				RecordHTTPRequest("/stats", "GET", "200")
				RecordHTTPRequestDuration("/stats", "GET", "200", 1.5)
			}, ShouldNotPanic)
		})

		Convey("When gathering", func() {
			families, err := Gather()

			Convey("Then metric families should be returned from the custom registry", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
