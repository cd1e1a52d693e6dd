package bump

import "math"

// DefaultSpeedLimitKmh is the limit above which a passing vehicle wears the bump.
const DefaultSpeedLimitKmh = 35.0

// ImpactDamage returns the health lost to one vehicle crossing at speedKmh.
// Vehicles at or below the limit cause no damage; above it the damage is
// (speed/10)^2.
func ImpactDamage(speedKmh, limitKmh float64) float64 {
	if speedKmh <= limitKmh || math.IsNaN(speedKmh) {
		return 0
	}
	return (speedKmh / 10) * (speedKmh / 10)
}

// DamagePoints rounds accumulated damage to whole health points. Negative and
// NaN damage count as zero.
func DamagePoints(damage float64) int {
	if !(damage > 0) {
		return 0
	}
	if damage > MaxHealth {
		return MaxHealth
	}
	return int(math.Round(damage))
}

// ClampHealth restricts h to [MinHealth, MaxHealth].
func ClampHealth(h int) int {
	if h < MinHealth {
		return MinHealth
	}
	if h > MaxHealth {
		return MaxHealth
	}
	return h
}

// Wear returns c with damage points subtracted and the result clamped.
// A status-variant condition is returned unchanged.
func Wear(c Condition, damage int) Condition {
	h, ok := c.Health()
	if !ok {
		return c
	}
	return HealthCondition(ClampHealth(h - damage))
}
