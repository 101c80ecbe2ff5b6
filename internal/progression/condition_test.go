package progression

import (
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input ConditionInput
		want  float64
	}{
		{
			name:  "all neutral scores exactly three",
			input: ConditionInput{Sleep: 3, Fatigue: 3, Stress: 3, Soreness: 3, Motivation: 3},
			want:  3.0,
		},
		{
			name:  "missing values default to neutral",
			input: ConditionInput{},
			want:  3.0,
		},
		{
			name:  "best possible day",
			input: ConditionInput{Sleep: 5, Fatigue: 1, Stress: 1, Soreness: 1, Motivation: 5},
			want:  5.0,
		},
		{
			name:  "worst possible day",
			input: ConditionInput{Sleep: 1, Fatigue: 5, Stress: 5, Soreness: 5, Motivation: 1},
			want:  1.0,
		},
		{
			name: "high fatigue drags the score down",
			// fatigue 5 inverts to 1: 3*0.25 + 1*0.20 + 3*0.15 + 3*0.20 + 3*0.20 = 2.6
			input: ConditionInput{Sleep: 3, Fatigue: 5, Stress: 3, Soreness: 3, Motivation: 3},
			want:  2.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Score(tt.input)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
			if got < 1.0 || got > 5.0 {
				t.Errorf("Score() = %v outside [1,5]", got)
			}
		})
	}
}

func TestBandForPartitionsRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{1.0, "poor"},
		{1.99, "poor"},
		{2.0, "moderate"},
		{2.99, "moderate"},
		{3.0, "good"},
		{3.99, "good"},
		{4.0, "excellent"},
		{5.0, "excellent"},
	}

	for _, tt := range tests {
		if got := BandFor(tt.score); got.Name != tt.want {
			t.Errorf("BandFor(%v) = %q, want %q", tt.score, got.Name, tt.want)
		}
	}

	// Exhaustively sweep the range to ensure exactly one band always answers.
	for s := 1.0; s <= 5.0; s += 0.01 {
		band := BandFor(s)
		if band.Name == "" || band.VolumeModifier == 0 || band.IntensityModifier == 0 {
			t.Fatalf("BandFor(%v) returned incomplete band %+v", s, band)
		}
	}
}

func TestGoodBandIsNeutral(t *testing.T) {
	t.Parallel()

	band := BandFor(Score(ConditionInput{Sleep: 3, Fatigue: 3, Stress: 3, Soreness: 3, Motivation: 3}))
	if band.Name != "good" || band.VolumeModifier != 1.0 || band.IntensityModifier != 1.0 {
		t.Errorf("neutral condition band = %+v, want good with 1.0/1.0 modifiers", band)
	}
}
