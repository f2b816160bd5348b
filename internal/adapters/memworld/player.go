package memworld

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/world"
)

// Player is mutable entity state. Getters implement world.Entity.
type Player struct {
	mu sync.RWMutex

	id           uuid.UUID
	pos          mgl64.Vec3
	mode         model.GameMode
	fallDistance float64
	health       float64
	maxHealth    float64
	boots        map[model.EnchantmentType]int
	effects      []model.Effect
	vehicle      bool
	sleeping     bool
	suppress     bool
}

var _ world.Entity = (*Player)(nil)

func (p *Player) ID() uuid.UUID { return p.id }

func (p *Player) Position() mgl64.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

func (p *Player) GameMode() model.GameMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

func (p *Player) FallDistance() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fallDistance
}

func (p *Player) Health() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

func (p *Player) MaxHealth() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxHealth
}

// BootsEnchantments returns a copy of the boot enchantments, nil without boots.
func (p *Player) BootsEnchantments() map[model.EnchantmentType]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.boots == nil {
		return nil
	}
	out := make(map[model.EnchantmentType]int, len(p.boots))
	for k, v := range p.boots {
		out[k] = v
	}
	return out
}

func (p *Player) ActiveEffects() []model.Effect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Effect(nil), p.effects...)
}

func (p *Player) InsideVehicle() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vehicle
}

func (p *Player) Sleeping() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sleeping
}

// Setters.

func (p *Player) SetPosition(pos mgl64.Vec3) {
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
}

func (p *Player) SetGameMode(m model.GameMode) {
	p.mu.Lock()
	p.mode = m
	p.mu.Unlock()
}

func (p *Player) SetFallDistance(d float64) {
	p.mu.Lock()
	p.fallDistance = d
	p.mu.Unlock()
}

// SetHealth clamps h into [0, max health].
func (p *Player) SetHealth(h float64) {
	p.mu.Lock()
	p.health = math.Max(0, math.Min(h, p.maxHealth))
	p.mu.Unlock()
}

// SetMaxHealth also lowers current health if it exceeds the new maximum.
func (p *Player) SetMaxHealth(h float64) {
	p.mu.Lock()
	p.maxHealth = h
	if p.health > h {
		p.health = h
	}
	p.mu.Unlock()
}

// Damage subtracts amount from health, floored at zero.
func (p *Player) Damage(amount float64) {
	p.mu.Lock()
	p.health = math.Max(0, p.health-amount)
	p.mu.Unlock()
}

// SetBoots equips boots with the given enchantments; nil removes the boots.
func (p *Player) SetBoots(ench map[model.EnchantmentType]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ench == nil {
		p.boots = nil
		return
	}
	p.boots = make(map[model.EnchantmentType]int, len(ench))
	for k, v := range ench {
		p.boots[k] = v
	}
}

func (p *Player) AddEffect(e model.Effect) {
	p.mu.Lock()
	p.effects = append(p.effects, e)
	p.mu.Unlock()
}

func (p *Player) ClearEffects() {
	p.mu.Lock()
	p.effects = nil
	p.mu.Unlock()
}

func (p *Player) SetInsideVehicle(v bool) {
	p.mu.Lock()
	p.vehicle = v
	p.mu.Unlock()
}

func (p *Player) SetSleeping(v bool) {
	p.mu.Lock()
	p.sleeping = v
	p.mu.Unlock()
}

// SetSuppressFallDamage makes ApplyLanding skip fall damage, simulating a
// client that cancels its own fall.
func (p *Player) SetSuppressFallDamage(v bool) {
	p.mu.Lock()
	p.suppress = v
	p.mu.Unlock()
}
