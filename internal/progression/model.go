// Package progression maps numeric training levels to tiers, grades, and load
// multipliers, and scores the user's daily condition.
package progression

// Tier represents the coarse skill band derived from a numeric level.
type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
)

// Level bounds.
const (
	MinLevel = 1
	MaxLevel = 8
)

// levelEntry holds the static attributes of a single level.
type levelEntry struct {
	tier       Tier
	grade      string
	multiplier float64
}

// levels is the progression table. Multipliers are monotonically non-decreasing.
var levels = [MaxLevel + 1]levelEntry{
	1: {TierBeginner, "Rookie", 0.50},
	2: {TierBeginner, "Novice", 0.60},
	3: {TierBeginner, "Apprentice", 0.70},
	4: {TierIntermediate, "Contender", 0.85},
	5: {TierIntermediate, "Challenger", 1.00},
	6: {TierIntermediate, "Veteran", 1.15},
	7: {TierAdvanced, "Elite", 1.30},
	8: {TierAdvanced, "Master", 1.50},
}

// Clamp folds an out-of-range level onto the nearest valid bound.
// Downstream load formulas index this table and must never miss.
func Clamp(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// TierFor returns the tier for a level.
func TierFor(level int) Tier {
	return levels[Clamp(level)].tier
}

// GradeFor returns the display grade for a level.
func GradeFor(level int) string {
	return levels[Clamp(level)].grade
}

// WeightMultiplier returns the load multiplier used in weight-hint formulas.
func WeightMultiplier(level int) float64 {
	return levels[Clamp(level)].multiplier
}

// DifficultyCeiling returns the highest exercise difficulty (1-4 ordinal)
// appropriate for a tier.
func DifficultyCeiling(tier Tier) int {
	switch tier {
	case TierBeginner:
		return 2
	case TierIntermediate:
		return 3
	case TierAdvanced:
		return 4
	default:
		return 2
	}
}
