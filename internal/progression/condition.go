package progression

// ConditionInput holds the five self-reported readiness values, each 1-5.
// A zero value means the user skipped the question and counts as neutral.
type ConditionInput struct {
	Sleep      int `json:"sleep"`
	Fatigue    int `json:"fatigue"`
	Stress     int `json:"stress"`
	Soreness   int `json:"soreness"`
	Motivation int `json:"motivation"`
}

// conditionWeights sum to 1.0 so the weighted average stays in [1,5].
const (
	sleepWeight      = 0.25
	fatigueWeight    = 0.20
	stressWeight     = 0.15
	sorenessWeight   = 0.20
	motivationWeight = 0.20
)

const neutralValue = 3

// Band is a condition adjustment band with volume and intensity modifiers.
type Band struct {
	Name              string  `json:"name"`
	VolumeModifier    float64 `json:"volume_modifier"`
	IntensityModifier float64 `json:"intensity_modifier"`
}

// The four bands partition [1,5].
var (
	BandExcellent = Band{Name: "excellent", VolumeModifier: 1.10, IntensityModifier: 1.05}
	BandGood      = Band{Name: "good", VolumeModifier: 1.00, IntensityModifier: 1.00}
	BandModerate  = Band{Name: "moderate", VolumeModifier: 0.85, IntensityModifier: 0.90}
	BandPoor      = Band{Name: "poor", VolumeModifier: 0.70, IntensityModifier: 0.80}
)

// Score computes the weighted condition score in [1,5].
//
// Fatigue, stress, and soreness are reported with higher meaning worse, so they
// are inverted before weighting. Missing values default to neutral.
func Score(in ConditionInput) float64 {
	sleep := normalize(in.Sleep)
	fatigue := invert(normalize(in.Fatigue))
	stress := invert(normalize(in.Stress))
	soreness := invert(normalize(in.Soreness))
	motivation := normalize(in.Motivation)

	weighted := float64(sleep)*sleepWeight +
		float64(fatigue)*fatigueWeight +
		float64(stress)*stressWeight +
		float64(soreness)*sorenessWeight +
		float64(motivation)*motivationWeight

	totalWeight := sleepWeight + fatigueWeight + stressWeight + sorenessWeight + motivationWeight
	return weighted / totalWeight
}

// BandFor maps a score onto its adjustment band. A score equal to a band's
// lower bound belongs to that band; anything below 2.0 is poor.
func BandFor(score float64) Band {
	switch {
	case score >= 4.0:
		return BandExcellent
	case score >= 3.0:
		return BandGood
	case score >= 2.0:
		return BandModerate
	default:
		return BandPoor
	}
}

func normalize(v int) int {
	if v < 1 || v > 5 {
		return neutralValue
	}
	return v
}

func invert(v int) int {
	return 6 - v
}
