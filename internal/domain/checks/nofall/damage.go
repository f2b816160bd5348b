package nofall

import (
	"math"

	"github.com/okian/warden/internal/domain/model"
)

// Fall damage model constants. The calibration term and the exemption were
// tuned against the host's damage application and are kept as-is.
const (
	// baseExemption is the number of fall units that deal no damage.
	baseExemption = 2.0
	// calibration is subtracted from every expected damage value.
	calibration = 1.0

	epfCap                 = 20.0
	epfMultiplier          = 4.0
	fallProtectionModifier = 2.5
	protectionModifier     = 0.75

	effectFallOffset = 3.0
	resistanceStep   = 0.2
)

// DamageInput is everything the model reads at the moment of impact.
type DamageInput struct {
	// FallDistance is the host's fall distance accumulator.
	FallDistance float64
	// HeightDrop is the last stable height minus the current height, zero
	// when no stable height was recorded.
	HeightDrop float64
	MaxHealth  float64
	Boots      map[model.EnchantmentType]int
	Effects    []model.Effect
}

// RawDamage is the unreduced fall damage: the larger fall metric rounded up,
// less the harmless first units, capped at max health.
func RawDamage(in DamageInput) float64 {
	return math.Min(math.Ceil(math.Max(in.HeightDrop, in.FallDistance))-baseExemption, in.MaxHealth)
}

func epf(level int, typeModifier float64) float64 {
	return (6 + float64(level*level)) * typeModifier / 3
}

// EnchantmentReduction converts the boots' protection factor into health
// points. The factor is capped at 20, so the result never exceeds 80.
func EnchantmentReduction(boots map[model.EnchantmentType]int) float64 {
	if boots == nil {
		return 0
	}
	var total float64
	if level, ok := boots[model.EnchantmentFallProtection]; ok && level > 0 {
		total += epf(level, fallProtectionModifier)
	}
	if level, ok := boots[model.EnchantmentProtection]; ok && level > 0 {
		total += epf(level, protectionModifier)
	}
	return math.Min(total, epfCap) * epfMultiplier
}

// PotionReduction sums the reduction of every active resistance and jump
// boost effect against raw damage.
func PotionReduction(raw, fallDistance float64, effects []model.Effect) float64 {
	var total float64
	for _, e := range effects {
		amp := float64(e.Amplifier)
		switch e.Type {
		case model.EffectResistance:
			total += raw - ((1-amp*resistanceStep)*fallDistance - effectFallOffset)
		case model.EffectJumpBoost:
			total += raw - (fallDistance - effectFallOffset - amp)
		}
	}
	return total
}

// ExpectedDamage is raw damage less enchantment and effect reductions and the
// calibration term. It may be negative; ExpectedHealth floors it.
func ExpectedDamage(in DamageInput) float64 {
	raw := RawDamage(in)
	return raw - EnchantmentReduction(in.Boots) - PotionReduction(raw, in.FallDistance, in.Effects) - calibration
}

// ExpectedHealth is the health the entity should have after taking damage,
// clamped into [0, maxHealth]. Negative damage never raises it above current.
func ExpectedHealth(current, maxHealth, damage float64) float64 {
	damage = math.Max(damage, 0)
	return math.Max(math.Min(current-damage, maxHealth), 0)
}
