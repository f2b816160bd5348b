package detection_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/detection"
	. "github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu   sync.Mutex
	list []detection.Detection
}

func (r *recorder) AddDetection(_ context.Context, d detection.Detection) {
	r.mu.Lock()
	r.list = append(r.list, d)
	r.mu.Unlock()
}

type fakeVersion struct {
	name      string
	calls     []any
	certainty float64
}

func (f *fakeVersion) Name() string                   { return f.name }
func (f *fakeVersion) Description() string            { return "test version " + f.name }
func (f *fakeVersion) Call(_ context.Context, e any)  { f.calls = append(f.calls, e) }
func (f *fakeVersion) CheckCurrentCertainty() float64 { return f.certainty }

func TestStats(t *testing.T) {
	Convey("Given empty stats", t, func() {
		var s detection.Stats

		Convey("Then certainty is the no-samples sentinel", func() {
			So(s.Certainty(), ShouldEqual, detection.NoSamples)
		})

		Convey("When one clean and one anomalous sample are judged", func() {
			s.Judge(false)
			s.Judge(true)
			judged, anomalous := s.Totals()
			So(judged, ShouldEqual, 2)
			So(anomalous, ShouldEqual, 1)
			So(s.Certainty(), ShouldEqual, 50)
		})

		Convey("When many clean samples follow one violation the ratio decays", func() {
			s.Judge(true)
			So(s.Certainty(), ShouldEqual, 100)
			for i := 0; i < 9; i++ {
				s.Judge(false)
			}
			So(s.Certainty(), ShouldEqual, 10)
		})
	})

	Convey("Given arbitrary sample sequences", t, func() {
		for n := 1; n <= 50; n++ {
			var s detection.Stats
			for i := 0; i < n; i++ {
				s.Judge(i%3 == 0)
			}
			c := s.Certainty()
			So(c, ShouldBeBetweenOrEqual, 0, 100)
		}
	})
}

func TestDisplacement(t *testing.T) {
	Convey("Given an empty displacement tracker", t, func() {
		var d detection.Displacement
		So(d.Ratio(), ShouldEqual, detection.NoSamples)

		Convey("When the full expected quantity is lost", func() {
			d.Observe(7, 7)
			So(d.Ratio(), ShouldEqual, 0)
		})

		Convey("When nothing is lost", func() {
			d.Observe(7, 0)
			So(d.Ratio(), ShouldEqual, 100)
		})

		Convey("When more than expected is lost the ratio stays at zero", func() {
			d.Observe(4, 9)
			So(d.Ratio(), ShouldEqual, 0)
		})

		Convey("When expectations are not positive they are skipped", func() {
			d.Observe(0, 0)
			d.Observe(-3, 0)
			So(d.Ratio(), ShouldEqual, detection.NoSamples)
		})

		Convey("When samples are mixed", func() {
			d.Observe(10, 10)
			d.Observe(10, 0)
			So(d.Ratio(), ShouldEqual, 50)
		})
	})
}

func TestCheck(t *testing.T) {
	Convey("Given a check with two versions", t, func() {
		rec := &recorder{}
		entity := uuid.New()
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		c := detection.NewCheck(detection.NoFall, entity, rec, detection.WithClock(func() time.Time { return at }))
		a := &fakeVersion{name: "A", certainty: detection.NoSamples}
		b := &fakeVersion{name: "B", certainty: detection.NoSamples}
		So(c.AddVersion(a), ShouldBeNil)
		So(c.AddVersion(b), ShouldBeNil)

		Convey("Then versions keep insertion order", func() {
			vs := c.Versions()
			So(vs, ShouldHaveLength, 2)
			So(vs[0].Name(), ShouldEqual, "A")
			So(vs[1].Name(), ShouldEqual, "B")
			got, ok := c.Version("B")
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, b)
		})

		Convey("Then duplicates and nil versions are rejected", func() {
			err := c.AddVersion(&fakeVersion{name: "A"})
			So(errors.Is(err, detection.ErrDuplicateVersion), ShouldBeTrue)
			So(c.AddVersion(nil), ShouldEqual, detection.ErrNilVersion)
		})

		Convey("When an event is called it reaches every version", func() {
			c.Call(context.Background(), "move")
			So(a.calls, ShouldResemble, []any{"move"})
			So(b.calls, ShouldResemble, []any{"move"})
		})

		Convey("When no version has samples the aggregate is the sentinel", func() {
			So(c.Certainty(), ShouldEqual, detection.NoSamples)
		})

		Convey("When versions have samples the aggregate is their maximum", func() {
			a.certainty = 25
			b.certainty = 60
			So(c.Certainty(), ShouldEqual, 60)
			b.certainty = detection.NoSamples
			So(c.Certainty(), ShouldEqual, 25)
		})

		Convey("When a version is flagged", func() {
			a.certainty = 100
			d := c.Flag(context.Background(), a)

			Convey("Then one detection reaches the recorder", func() {
				So(rec.list, ShouldHaveLength, 1)
				So(rec.list[0], ShouldResemble, d)
				So(d.Entity, ShouldEqual, entity)
				So(d.Check, ShouldEqual, detection.NoFall)
				So(d.Version, ShouldEqual, "A")
				So(d.Certainty, ShouldEqual, 100)
				So(d.At, ShouldEqual, at)
				So(d.ID, ShouldNotEqual, uuid.Nil)
			})
		})
	})
}

func TestCheckType(t *testing.T) {
	Convey("Given the catalogue", t, func() {
		So(detection.Catalogue(), ShouldResemble, []detection.CheckType{detection.NoFall})
		So(detection.CatalogueSize(), ShouldEqual, 1)

		Convey("Then names round-trip", func() {
			b, err := detection.NoFall.MarshalText()
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "nofall")

			var ct detection.CheckType
			So(ct.UnmarshalText([]byte("NoFall")), ShouldBeNil)
			So(ct, ShouldEqual, detection.NoFall)
		})

		Convey("Then unknown categories are rejected", func() {
			So(detection.CheckType(99).Valid(), ShouldBeFalse)
			_, err := detection.CheckType(99).MarshalText()
			So(err, ShouldEqual, detection.ErrUnknownCheckType)
			_, ok := detection.ParseCheckType("speed")
			So(ok, ShouldBeFalse)
		})
	})
}
