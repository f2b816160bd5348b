// Package memworld is an in-memory host world implementing world.View. It
// backs the replay tool and tests, and can serve hosts that mirror their
// state into the process instead of writing their own adapter.
package memworld

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/world"
)

// Vanilla fall damage rules applied by ApplyLanding.
const (
	safeFallDistance = 3.0
	defaultMaxHealth = 20.0
)

type blockKey [3]int64

func keyOf(pos mgl64.Vec3) blockKey {
	return blockKey{
		int64(math.Floor(pos.X())),
		int64(math.Floor(pos.Y())),
		int64(math.Floor(pos.Z())),
	}
}

// World holds blocks and players.
type World struct {
	mu      sync.RWMutex
	blocks  map[blockKey]model.Material
	players map[uuid.UUID]*Player
	now     func() time.Time
}

// Option configures a World.
type Option func(*World)

// WithClock overrides the clock used to stamp move events.
func WithClock(now func() time.Time) Option {
	return func(w *World) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates an empty world where every block is air.
func New(opts ...Option) *World {
	w := &World{
		blocks:  make(map[blockKey]model.Material),
		players: make(map[uuid.UUID]*Player),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var _ world.View = (*World)(nil)

// Entity implements world.View.
func (w *World) Entity(id uuid.UUID) (world.Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// BlockAt implements world.View.
func (w *World) BlockAt(pos mgl64.Vec3) model.Material {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blocks[keyOf(pos)]
}

// SetBlock places a material at pos.
func (w *World) SetBlock(pos mgl64.Vec3, m model.Material) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if m == model.MaterialAir {
		delete(w.blocks, keyOf(pos))
		return
	}
	w.blocks[keyOf(pos)] = m
}

// Fill sets every block in the inclusive box between a and b.
func (w *World) Fill(a, b mgl64.Vec3, m model.Material) {
	lo, hi := keyOf(a), keyOf(b)
	for i := range lo {
		if lo[i] > hi[i] {
			lo[i], hi[i] = hi[i], lo[i]
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				k := blockKey{x, y, z}
				if m == model.MaterialAir {
					delete(w.blocks, k)
				} else {
					w.blocks[k] = m
				}
			}
		}
	}
}

// Spawn adds a survival player with full default health at pos.
func (w *World) Spawn(id uuid.UUID, pos mgl64.Vec3) *Player {
	p := &Player{
		id:        id,
		pos:       pos,
		health:    defaultMaxHealth,
		maxHealth: defaultMaxHealth,
	}
	w.mu.Lock()
	w.players[id] = p
	w.mu.Unlock()
	return p
}

// Despawn removes a player; later lookups fail as for a disconnected entity.
func (w *World) Despawn(id uuid.UUID) {
	w.mu.Lock()
	delete(w.players, id)
	w.mu.Unlock()
}

// Player returns the mutable player state for id.
func (w *World) Player(id uuid.UUID) (*Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	return p, ok
}

// Move relocates a player and accumulates fall distance the way the host does
// before it fires the move event. It returns the event to deliver; ok is false
// for unknown players.
func (w *World) Move(id uuid.UUID, to mgl64.Vec3) (model.MoveEvent, bool) {
	p, ok := w.Player(id)
	if !ok {
		return model.MoveEvent{}, false
	}
	p.mu.Lock()
	from := p.pos
	p.pos = to
	if dy := to.Y() - from.Y(); dy < 0 {
		p.fallDistance -= dy
	}
	if p.mode.Exempt() || p.vehicle {
		p.fallDistance = 0
	}
	p.mu.Unlock()

	if w.BlockAt(to).IsLiquid() {
		p.mu.Lock()
		p.fallDistance = 0
		p.mu.Unlock()
	}
	return model.MoveEvent{Entity: id, From: from, To: to, At: w.now()}, true
}

// ApplyLanding applies vanilla fall damage if the player stands on a non-air
// block, then resets the fall distance. It returns the damage dealt. Players
// flagged with SuppressFallDamage take none, which is what the fall check
// exists to catch.
func (w *World) ApplyLanding(id uuid.UUID) float64 {
	p, ok := w.Player(id)
	if !ok {
		return 0
	}
	if w.BlockAt(model.Below(p.Position())).IsAir() {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fall := p.fallDistance
	p.fallDistance = 0
	if p.suppress || p.mode.Exempt() {
		return 0
	}
	damage := math.Max(0, math.Ceil(fall-safeFallDistance))
	p.health = math.Max(0, p.health-damage)
	return damage
}
