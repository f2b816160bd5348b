// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// MoveEvent is one movement step of an entity, delivered once per host tick
// of movement.
type MoveEvent struct {
	Entity uuid.UUID  // stable entity identity
	From   mgl64.Vec3 // origin position
	To     mgl64.Vec3 // destination position
	At     time.Time  // host receipt time
}

// VerticalDelta returns To.Y - From.Y.
func (e MoveEvent) VerticalDelta() float64 { return e.To.Y() - e.From.Y() }

// Below returns the position one block beneath p.
func Below(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{p.X(), p.Y() - 1, p.Z()}
}

// Above returns the position one block above p.
func Above(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{p.X(), p.Y() + 1, p.Z()}
}
