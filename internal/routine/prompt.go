package routine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/repstack/trainer/internal/knowledge"
	"github.com/repstack/trainer/internal/profile"
	"github.com/repstack/trainer/internal/progression"
)

const systemPrompt = `You are a strength coach who designs one-day training routines. Answer with a single JSON object and nothing else, in this shape:

{"exercises":[{"id":0,"name":"","target_muscle":"","sets":3,"reps":10,"duration_sec":null,"rest_sec":90,"weight_hint":"","instructions":""}],"duration_min":45,"notes":""}

Rules:
- Prescribe 4 to 6 exercises.
- Use "duration_sec" instead of "reps" for timed holds such as planks.
- Respect the requested session length and the trainee's condition.
- Keep instructions short and concrete.`

// promptContext carries everything the prompt needs about the trainee
// and the day.
type promptContext struct {
	profile     profile.Profile
	tier        progression.Tier
	band        progression.Band
	score       float64
	pool        []PoolEntry
	focus       string
	durationMin int
	creative    bool
	chunks      []knowledge.Chunk
}

// buildUserPrompt renders the generation request the model answers.
func buildUserPrompt(pc promptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trainee: level %d (%s, %s tier), weight multiplier %.2f.\n",
		pc.profile.Level,
		progression.GradeFor(pc.profile.Level),
		pc.tier,
		progression.WeightMultiplier(pc.profile.Level))
	if pc.profile.FitnessGoal != "" {
		fmt.Fprintf(&b, "Goal: %s.\n", pc.profile.FitnessGoal)
	}
	fmt.Fprintf(&b, "Condition today: %.1f/5 (%s). Scale volume by %.2f and intensity by %.2f.\n",
		pc.score, pc.band.Name, pc.band.VolumeModifier, pc.band.IntensityModifier)
	fmt.Fprintf(&b, "Session length: about %d minutes. Focus: %s.\n", pc.durationMin, pc.focus)

	if pc.creative {
		b.WriteString("You may invent exercises beyond the pool when they serve the goal better.\n")
	} else {
		b.WriteString("Pick exercises from this pool only, referencing them by id or exact name.\n")
	}
	b.WriteString("Exercise pool:\n")
	b.WriteString(poolJSON(pc.pool))
	b.WriteString("\n")

	if len(pc.chunks) > 0 {
		b.WriteString("Programming notes to consider:\n")
		for _, chunk := range pc.chunks {
			note := chunk.Summary
			if note == "" {
				note = chunk.Content
			}
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	b.WriteString("Return the routine JSON now.")
	return b.String()
}

func poolJSON(pool []PoolEntry) string {
	data, err := json.Marshal(pool)
	if err != nil {
		// PoolEntry marshals cleanly, this cannot happen with real data.
		return "[]"
	}
	return string(data)
}
