// Package behaviour derives transient environment flags for an entity from
// the current world state. Nothing is cached: every query reads the world.
package behaviour

import (
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/world"
)

// Behaviour is a computed view over one entity's surroundings.
type Behaviour struct {
	id   uuid.UUID
	view world.View
}

// New binds a Behaviour to an entity identity and a world view.
func New(id uuid.UUID, view world.View) *Behaviour {
	return &Behaviour{id: id, view: view}
}

// Flags is a point-in-time reading of all environment flags.
type Flags struct {
	InLiquid bool
	InWeb    bool
	Mounted  bool
	Resting  bool
}

// Exempt reports whether any flag legitimately avoids fall damage.
func (f Flags) Exempt() bool {
	return f.InLiquid || f.InWeb || f.Mounted || f.Resting
}

// Read samples every flag once. An unresolvable entity reads as all false.
func (b *Behaviour) Read() Flags {
	e, ok := b.view.Entity(b.id)
	if !ok {
		return Flags{}
	}
	feet := b.view.BlockAt(e.Position())
	head := b.view.BlockAt(model.Above(e.Position()))
	return Flags{
		InLiquid: feet.IsLiquid() || head.IsLiquid(),
		InWeb:    feet == model.MaterialWeb || head == model.MaterialWeb,
		Mounted:  e.InsideVehicle(),
		Resting:  e.Sleeping(),
	}
}

// IsInLiquid reports whether the entity is submerged in water or lava.
func (b *Behaviour) IsInLiquid() bool { return b.Read().InLiquid }

// IsInWeb reports whether the entity is entangled in a web.
func (b *Behaviour) IsInWeb() bool { return b.Read().InWeb }

// IsMounted reports whether the entity rides a vehicle.
func (b *Behaviour) IsMounted() bool { return b.Read().Mounted }

// IsResting reports whether the entity is sleeping.
func (b *Behaviour) IsResting() bool { return b.Read().Resting }
