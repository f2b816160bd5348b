// Package world declares the read-only capabilities the detection core needs
// from the host engine. Implementations are queried synchronously at call
// time and must not be cached beyond the handling of one event.
package world

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/model"
)

// View resolves live entities and blocks.
type View interface {
	// Entity returns the live entity for id, or false when it is not
	// currently resolvable (disconnected, unloaded).
	Entity(id uuid.UUID) (Entity, bool)

	// BlockAt returns the block material at pos.
	BlockAt(pos mgl64.Vec3) model.Material
}

// Entity is a live entity reference. Every method reads current state.
type Entity interface {
	ID() uuid.UUID

	// Position is where the entity is now. While a move event is handled
	// it must already be the event's destination: a host whose own API
	// still reports the origin at that point (a Bukkit PlayerMoveEvent, for
	// one) has its adapter return the event's To position instead. Stable
	// heights and height drops are measured against this value.
	Position() mgl64.Vec3
	GameMode() model.GameMode

	// FallDistance is the host's accumulated fall distance for the current fall.
	FallDistance() float64

	Health() float64
	MaxHealth() float64

	// BootsEnchantments returns the levels of enchantments on the foot armour
	// slot; nil when the slot is empty.
	BootsEnchantments() map[model.EnchantmentType]int

	ActiveEffects() []model.Effect

	InsideVehicle() bool
	Sleeping() bool
}

// Scheduler runs a zero-argument callback after a number of host ticks on
// the host's update thread.
type Scheduler interface {
	After(ticks int, fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(ticks int, fn func())

// After calls f(ticks, fn).
func (f SchedulerFunc) After(ticks int, fn func()) { f(ticks, fn) }

// BlockBelow returns the material one block beneath pos.
func BlockBelow(v View, pos mgl64.Vec3) model.Material {
	return v.BlockAt(model.Below(pos))
}
