package checks_test

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/adapters/memworld"
	"github.com/okian/warden/internal/adapters/scheduler"
	"github.com/okian/warden/internal/domain/checks"
	"github.com/okian/warden/internal/domain/checks/nofall"
	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/internal/domain/profile"
	"github.com/okian/warden/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestRegister(t *testing.T) {
	convey.Convey("Given a fresh profile", t, func() {
		w := memworld.New()
		id := uuid.New()
		w.Spawn(id, mgl64.Vec3{})
		p := profile.New(id, w)

		convey.Convey("When the catalogue is registered", func() {
			err := checks.Register(p, checks.Deps{Scheduler: scheduler.New(), Logger: logger.Nop()})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every category has a check", func() {
				convey.So(p.Checks(), convey.ShouldHaveLength, detection.CatalogueSize())
				for _, ct := range detection.Catalogue() {
					_, ok := p.Check(ct)
					convey.So(ok, convey.ShouldBeTrue)
				}
			})

			convey.Convey("Then the fall check carries version A", func() {
				c, _ := p.Check(detection.NoFall)
				v, ok := c.Version("A")
				convey.So(ok, convey.ShouldBeTrue)
				_, isA := v.(*nofall.A)
				convey.So(isA, convey.ShouldBeTrue)
				convey.So(c.Certainty(), convey.ShouldEqual, detection.NoSamples)
			})

			convey.Convey("Then registering twice fails", func() {
				err := checks.Register(p, checks.Deps{Scheduler: scheduler.New()})
				convey.So(errors.Is(err, profile.ErrDuplicateCheck), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When no scheduler is supplied", func() {
			err := checks.Register(p, checks.Deps{})
			convey.So(errors.Is(err, nofall.ErrNoScheduler), convey.ShouldBeTrue)
			convey.So(p.Checks(), convey.ShouldBeEmpty)
		})
	})
}
