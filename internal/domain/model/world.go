package model

import "strings"

// GameMode is the entity's current game mode.
type GameMode uint8

const (
	GameModeSurvival GameMode = iota
	GameModeAdventure
	GameModeCreative
	GameModeSpectator
)

// Exempt reports whether fall damage never applies in this mode.
func (m GameMode) Exempt() bool {
	return m == GameModeCreative || m == GameModeSpectator
}

func (m GameMode) String() string {
	switch m {
	case GameModeSurvival:
		return "survival"
	case GameModeAdventure:
		return "adventure"
	case GameModeCreative:
		return "creative"
	case GameModeSpectator:
		return "spectator"
	default:
		return "unknown"
	}
}

// ParseGameMode maps a name to a GameMode. Unknown names map to survival
// and ok=false.
func ParseGameMode(s string) (GameMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "survival":
		return GameModeSurvival, true
	case "adventure":
		return GameModeAdventure, true
	case "creative":
		return GameModeCreative, true
	case "spectator":
		return GameModeSpectator, true
	default:
		return GameModeSurvival, false
	}
}

// Material is the coarse block classification the detection core needs.
type Material uint8

const (
	MaterialAir Material = iota
	MaterialSolid
	MaterialWater
	MaterialLava
	MaterialWeb
)

// IsAir reports whether the block is empty space.
func (m Material) IsAir() bool { return m == MaterialAir }

// IsLiquid reports whether the block submerges an entity.
func (m Material) IsLiquid() bool { return m == MaterialWater || m == MaterialLava }

func (m Material) String() string {
	switch m {
	case MaterialAir:
		return "air"
	case MaterialSolid:
		return "solid"
	case MaterialWater:
		return "water"
	case MaterialLava:
		return "lava"
	case MaterialWeb:
		return "web"
	default:
		return "unknown"
	}
}

// ParseMaterial maps a name to a Material.
func ParseMaterial(s string) (Material, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "air":
		return MaterialAir, true
	case "solid", "stone", "ground":
		return MaterialSolid, true
	case "water":
		return MaterialWater, true
	case "lava":
		return MaterialLava, true
	case "web", "cobweb":
		return MaterialWeb, true
	default:
		return MaterialAir, false
	}
}

// EnchantmentType identifies an armour enchantment relevant to fall damage.
type EnchantmentType uint8

const (
	EnchantmentFallProtection EnchantmentType = iota + 1
	EnchantmentProtection
)

func (e EnchantmentType) String() string {
	switch e {
	case EnchantmentFallProtection:
		return "fall_protection"
	case EnchantmentProtection:
		return "protection"
	default:
		return "unknown"
	}
}

// ParseEnchantment maps a name to an EnchantmentType.
func ParseEnchantment(s string) (EnchantmentType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fall_protection", "feather_falling":
		return EnchantmentFallProtection, true
	case "protection":
		return EnchantmentProtection, true
	default:
		return 0, false
	}
}

// EffectType identifies an active status effect.
type EffectType uint8

const (
	EffectOther EffectType = iota
	EffectResistance
	EffectJumpBoost
)

func (e EffectType) String() string {
	switch e {
	case EffectResistance:
		return "resistance"
	case EffectJumpBoost:
		return "jump_boost"
	default:
		return "other"
	}
}

// ParseEffect maps a name to an EffectType; unknown names are EffectOther.
func ParseEffect(s string) EffectType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "resistance", "damage_resistance":
		return EffectResistance
	case "jump_boost", "jump":
		return EffectJumpBoost
	default:
		return EffectOther
	}
}

// Effect is an active status effect with its amplifier (0 = level I).
type Effect struct {
	Type      EffectType
	Amplifier int
}
