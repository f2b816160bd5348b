package memworld

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWorldBlocks(t *testing.T) {
	Convey("Given an empty world", t, func() {
		w := New()

		Convey("Then every block is air", func() {
			So(w.BlockAt(mgl64.Vec3{10, 64, -3}), ShouldEqual, model.MaterialAir)
		})

		Convey("When a block is set it is found at any point inside it", func() {
			w.SetBlock(mgl64.Vec3{1, 63, 1}, model.MaterialSolid)
			So(w.BlockAt(mgl64.Vec3{1.9, 63.2, 1.1}), ShouldEqual, model.MaterialSolid)
			So(w.BlockAt(mgl64.Vec3{2.0, 63.2, 1.1}), ShouldEqual, model.MaterialAir)
		})

		Convey("When negative coordinates are used they floor toward minus infinity", func() {
			w.SetBlock(mgl64.Vec3{-1, 0, -1}, model.MaterialWater)
			So(w.BlockAt(mgl64.Vec3{-0.5, 0.5, -0.2}), ShouldEqual, model.MaterialWater)
		})

		Convey("When a box is filled in reverse corner order", func() {
			w.Fill(mgl64.Vec3{2, 2, 2}, mgl64.Vec3{0, 0, 0}, model.MaterialSolid)
			So(w.BlockAt(mgl64.Vec3{1, 1, 1}), ShouldEqual, model.MaterialSolid)
			So(w.BlockAt(mgl64.Vec3{2, 0, 2}), ShouldEqual, model.MaterialSolid)

			Convey("And cleared with air", func() {
				w.Fill(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 2}, model.MaterialAir)
				So(w.BlockAt(mgl64.Vec3{1, 1, 1}), ShouldEqual, model.MaterialAir)
			})
		})
	})
}

func TestWorldFalls(t *testing.T) {
	Convey("Given a player above solid ground", t, func() {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		w := New(WithClock(func() time.Time { return at }))
		w.Fill(mgl64.Vec3{-5, 59, -5}, mgl64.Vec3{5, 59, 5}, model.MaterialSolid)
		id := uuid.New()
		p := w.Spawn(id, mgl64.Vec3{0.5, 70, 0.5})

		Convey("When it falls ten blocks", func() {
			for y := 69.0; y >= 60; y-- {
				_, ok := w.Move(id, mgl64.Vec3{0.5, y, 0.5})
				So(ok, ShouldBeTrue)
			}
			So(p.FallDistance(), ShouldAlmostEqual, 10)

			Convey("Then landing deals vanilla damage and resets the fall", func() {
				So(w.ApplyLanding(id), ShouldEqual, 7)
				So(p.Health(), ShouldEqual, 13)
				So(p.FallDistance(), ShouldEqual, 0)
			})

			Convey("Then a suppressing client takes no damage", func() {
				p.SetSuppressFallDamage(true)
				So(w.ApplyLanding(id), ShouldEqual, 0)
				So(p.Health(), ShouldEqual, 20)
			})
		})

		Convey("When it moves the event carries origin, destination and clock", func() {
			ev, ok := w.Move(id, mgl64.Vec3{0.5, 69, 0.5})
			So(ok, ShouldBeTrue)
			So(ev.Entity, ShouldEqual, id)
			So(ev.From, ShouldResemble, mgl64.Vec3{0.5, 70, 0.5})
			So(ev.To, ShouldResemble, mgl64.Vec3{0.5, 69, 0.5})
			So(ev.At, ShouldEqual, at)
		})

		Convey("When it is in creative the fall distance does not accumulate", func() {
			p.SetGameMode(model.GameModeCreative)
			w.Move(id, mgl64.Vec3{0.5, 60, 0.5})
			So(p.FallDistance(), ShouldEqual, 0)
		})

		Convey("When the player is unknown", func() {
			_, ok := w.Move(uuid.New(), mgl64.Vec3{})
			So(ok, ShouldBeFalse)
			So(w.ApplyLanding(uuid.New()), ShouldEqual, 0)
		})
	})
}

func TestPlayerState(t *testing.T) {
	Convey("Given a spawned player", t, func() {
		w := New()
		p := w.Spawn(uuid.New(), mgl64.Vec3{})

		Convey("Then health is clamped into range", func() {
			p.SetHealth(50)
			So(p.Health(), ShouldEqual, 20)
			p.SetHealth(-3)
			So(p.Health(), ShouldEqual, 0)
		})

		Convey("Then lowering max health lowers current health", func() {
			p.SetMaxHealth(10)
			So(p.Health(), ShouldEqual, 10)
		})

		Convey("Then boots enchantments are copied on read", func() {
			So(p.BootsEnchantments(), ShouldBeNil)
			p.SetBoots(map[model.EnchantmentType]int{model.EnchantmentFallProtection: 4})
			got := p.BootsEnchantments()
			got[model.EnchantmentFallProtection] = 1
			So(p.BootsEnchantments()[model.EnchantmentFallProtection], ShouldEqual, 4)
		})

		Convey("Then effects accumulate and clear", func() {
			p.AddEffect(model.Effect{Type: model.EffectResistance, Amplifier: 1})
			p.AddEffect(model.Effect{Type: model.EffectJumpBoost})
			So(p.ActiveEffects(), ShouldHaveLength, 2)
			p.ClearEffects()
			So(p.ActiveEffects(), ShouldBeEmpty)
		})
	})
}

func TestWorldMoveReportsDestination(t *testing.T) {
	Convey("Given a spawned player", t, func() {
		w := New()
		id := uuid.New()
		p := w.Spawn(id, mgl64.Vec3{0.5, 70, 0.5})

		Convey("When it moves, the event is handed out after the position updates", func() {
			ev, ok := w.Move(id, mgl64.Vec3{0.5, 68.5, 0.5})
			So(ok, ShouldBeTrue)
			So(ev.From, ShouldResemble, mgl64.Vec3{0.5, 70, 0.5})
			So(p.Position(), ShouldResemble, ev.To)

			ent, ok := w.Entity(id)
			So(ok, ShouldBeTrue)
			So(ent.Position().Y(), ShouldEqual, 68.5)
		})
	})
}
