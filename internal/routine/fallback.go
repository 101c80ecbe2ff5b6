package routine

import (
	"context"
	"log/slog"

	"github.com/repstack/trainer/internal/ptr"
)

// catalogRoutine builds the session straight from today's program
// entries in the pool, no model involved. Fill-to-total entries keep
// their nil set count and total rep target.
func (g *generator) catalogRoutine(pc promptContext) []RoutineExercise {
	rest := defaultRestSec(pc.tier)
	var out []RoutineExercise
	for _, entry := range pc.pool {
		if entry.Source != sourceProgram {
			continue
		}
		exercise := RoutineExercise{
			ExerciseID:   entry.ExerciseID,
			Name:         entry.Name,
			TargetMuscle: entry.TargetMuscle,
			Sets:         entry.Sets,
			RestSec:      entry.RestSec,
			WeightHint:   entry.WeightHint,
			Instructions: entry.Note,
		}
		if entry.Reps > 0 {
			exercise.Reps = ptr.Ref(entry.Reps)
		}
		if !entry.fillToTotal() {
			applyDefaults(&exercise, rest)
		}
		out = append(out, exercise)
	}
	if len(out) > maxRoutineExercises {
		out = out[:maxRoutineExercises]
	}
	return out
}

// fallbackRoutine is the deterministic routine served when the model is
// unavailable or its answer cannot be used: three safe bodyweight
// movements anyone can perform. It never fails, storage errors only
// cost the exercise IDs.
func (g *generator) fallbackRoutine(ctx context.Context, pc promptContext) []RoutineExercise {
	rest := defaultRestSec(pc.tier)
	exercises := []RoutineExercise{
		{
			Name:         "Push-Up",
			TargetMuscle: "chest",
			Sets:         ptr.Ref(defaultSets),
			Reps:         ptr.Ref(defaultReps),
			RestSec:      rest,
			WeightHint:   "bodyweight",
			Instructions: "Keep the body in a straight line, chest to the floor.",
		},
		{
			Name:         "Bodyweight Squat",
			TargetMuscle: "legs",
			Sets:         ptr.Ref(defaultSets),
			Reps:         ptr.Ref(15),
			RestSec:      rest,
			WeightHint:   "bodyweight",
			Instructions: "Sit back and down until the thighs reach parallel.",
		},
		{
			Name:         "Plank",
			TargetMuscle: "core",
			Sets:         ptr.Ref(defaultSets),
			DurationSec:  ptr.Ref(defaultTimedDurationSec),
			RestSec:      60,
			WeightHint:   "bodyweight",
			Instructions: "Brace the trunk, no sagging hips.",
		},
	}

	for i := range exercises {
		stored, found, err := g.exercises.FindByName(ctx, exercises[i].Name)
		if err != nil {
			g.logger.LogAttrs(ctx, slog.LevelWarn, "resolve fallback exercise",
				slog.String("name", exercises[i].Name), slog.Any("error", err))
			continue
		}
		if found {
			exercises[i].ExerciseID = stored.ID
		}
	}
	return exercises
}
