package routine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/repstack/trainer/internal/knowledge"
	"github.com/repstack/trainer/internal/progression"
	"github.com/repstack/trainer/internal/ptr"
)

// generator drives the model side of routine generation.
type generator struct {
	backend   textBackend
	exercises *sqliteExerciseRepository
	retriever *knowledge.Retriever
	logger    *slog.Logger
}

// errNoBackend signals that no language model is configured.
var errNoBackend = fmt.Errorf("no language model configured")

// propose asks the model for a routine and parses its answer.
func (g *generator) propose(ctx context.Context, pc promptContext, strategy Strategy) (llmRoutine, error) {
	if g.backend == nil {
		return llmRoutine{}, errNoBackend
	}
	messages := []chatMessage{
		{role: roleSystem, content: systemPrompt},
		{role: roleUser, content: buildUserPrompt(pc)},
	}

	var (
		reply chatMessage
		err   error
	)
	if strategy == StrategyAgentic {
		reply, err = g.toolLoop(ctx, messages, pc)
	} else {
		reply, err = g.backend.complete(ctx, messages, nil)
	}
	if err != nil {
		return llmRoutine{}, fmt.Errorf("model invoke: %w", err)
	}

	parsed, err := parseRoutine(reply.content)
	if err != nil {
		return llmRoutine{}, fmt.Errorf("parse model routine: %w", err)
	}
	return parsed, nil
}

// toolLoop runs the agentic conversation. The model may call tools for
// up to maxToolIterations rounds, after that it gets one tools-off turn
// to produce the final answer.
func (g *generator) toolLoop(ctx context.Context, messages []chatMessage, pc promptContext) (chatMessage, error) {
	tb := &toolbox{pc: pc, exercises: g.exercises, retriever: g.retriever}
	tools := tb.definitions()

	for i := 0; i < maxToolIterations; i++ {
		reply, err := g.backend.complete(ctx, messages, tools)
		if err != nil {
			return chatMessage{}, err
		}
		if len(reply.toolCalls) == 0 {
			return reply, nil
		}
		messages = append(messages, reply)
		for _, call := range reply.toolCalls {
			g.logger.LogAttrs(ctx, slog.LevelDebug, "tool call",
				slog.String("tool", call.name))
			messages = append(messages, chatMessage{
				role:       roleTool,
				content:    tb.execute(ctx, call),
				toolCallID: call.id,
			})
		}
	}

	g.logger.LogAttrs(ctx, slog.LevelWarn, "tool budget exhausted, forcing final answer",
		slog.Int("iterations", maxToolIterations))
	messages = append(messages, chatMessage{
		role:    roleUser,
		content: "Stop calling tools. Respond now with the final routine JSON.",
	})
	return g.backend.complete(ctx, messages, nil)
}

// resolveExercises pins every model-proposed exercise to stored data.
// Unknown names are created so they can be reused later. Exercises that
// cannot be resolved at all are dropped.
func (g *generator) resolveExercises(ctx context.Context, parsed llmRoutine, pc promptContext) []RoutineExercise {
	rest := defaultRestSec(pc.tier)
	var out []RoutineExercise
	for _, proposed := range parsed.Exercises {
		resolved, ok := g.resolveOne(ctx, proposed, pc)
		if !ok {
			continue
		}
		applyDefaults(&resolved, rest)
		out = append(out, resolved)
	}
	return out
}

func (g *generator) resolveOne(ctx context.Context, proposed llmExercise, pc promptContext) (RoutineExercise, bool) {
	exercise := RoutineExercise{
		Name:         strings.TrimSpace(proposed.Name),
		TargetMuscle: proposed.TargetMuscle,
		Sets:         proposed.Sets,
		Reps:         proposed.Reps,
		DurationSec:  proposed.DurationSec,
		RestSec:      proposed.RestSec,
		WeightHint:   proposed.WeightHint,
		Instructions: proposed.Instructions,
	}

	if entry, ok := matchPool(pc.pool, proposed); ok {
		exercise.ExerciseID = entry.ExerciseID
		if exercise.Name == "" {
			exercise.Name = entry.Name
		}
		if exercise.TargetMuscle == "" {
			exercise.TargetMuscle = entry.TargetMuscle
		}
		if exercise.WeightHint == "" {
			exercise.WeightHint = entry.WeightHint
		}
		if exercise.RestSec == 0 {
			exercise.RestSec = entry.RestSec
		}
	}

	if exercise.ExerciseID == 0 && proposed.ID > 0 {
		if stored, err := g.exercises.Get(ctx, proposed.ID); err == nil {
			exercise.ExerciseID = stored.ID
			if exercise.Name == "" {
				exercise.Name = stored.Name
			}
			if exercise.TargetMuscle == "" {
				exercise.TargetMuscle = stored.TargetMuscle
			}
		}
	}
	if exercise.Name == "" {
		return RoutineExercise{}, false
	}

	if exercise.ExerciseID == 0 {
		stored, found, err := g.exercises.FindByName(ctx, exercise.Name)
		if err != nil {
			g.logger.LogAttrs(ctx, slog.LevelWarn, "resolve exercise by name",
				slog.String("name", exercise.Name), slog.Any("error", err))
		}
		switch {
		case found:
			exercise.ExerciseID = stored.ID
			if exercise.TargetMuscle == "" {
				exercise.TargetMuscle = stored.TargetMuscle
			}
		default:
			target := exercise.TargetMuscle
			if target == "" {
				target = pc.focus
			}
			created, createErr := g.exercises.Create(ctx, Exercise{
				Name:         exercise.Name,
				TargetMuscle: target,
				Difficulty:   1,
			})
			if createErr != nil {
				g.logger.LogAttrs(ctx, slog.LevelWarn, "create proposed exercise",
					slog.String("name", exercise.Name), slog.Any("error", createErr))
			} else {
				exercise.ExerciseID = created.ID
				exercise.TargetMuscle = created.TargetMuscle
			}
		}
	}
	return exercise, true
}

// matchPool finds the pool entry a proposal refers to, by ID first, then
// by exact name, then by substring.
func matchPool(pool []PoolEntry, proposed llmExercise) (PoolEntry, bool) {
	if proposed.ID > 0 {
		for _, entry := range pool {
			if entry.ExerciseID == proposed.ID {
				return entry, true
			}
		}
	}
	name := strings.ToLower(strings.TrimSpace(proposed.Name))
	if name == "" {
		return PoolEntry{}, false
	}
	for _, entry := range pool {
		if strings.ToLower(entry.Name) == name {
			return entry, true
		}
	}
	for _, entry := range pool {
		entryName := strings.ToLower(entry.Name)
		if strings.Contains(entryName, name) || strings.Contains(name, entryName) {
			return entry, true
		}
	}
	return PoolEntry{}, false
}

// timedExerciseKeywords mark movements prescribed by time, not reps.
var timedExerciseKeywords = []string{"plank", "hold", "wall sit", "dead hang", "carry", "hollow body"}

func isTimedExercise(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range timedExerciseKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// defaultTimedDurationSec is prescribed when a timed movement arrives
// without a duration.
const defaultTimedDurationSec = 30

// applyDefaults fills the blanks in a resolved exercise: rest by tier,
// sets and reps by convention, and a duration instead of reps for timed
// movements.
func applyDefaults(exercise *RoutineExercise, restSec int) {
	if exercise.RestSec <= 0 {
		exercise.RestSec = restSec
	}
	if exercise.Sets == nil {
		exercise.Sets = ptr.Ref(defaultSets)
	}
	if isTimedExercise(exercise.Name) && exercise.DurationSec == nil {
		exercise.DurationSec = ptr.Ref(defaultTimedDurationSec)
		exercise.Reps = nil
	}
	if exercise.DurationSec != nil {
		exercise.Reps = nil
		return
	}
	if exercise.Reps == nil || *exercise.Reps <= 0 {
		exercise.Reps = ptr.Ref(defaultReps)
	}
}

// applyCondition scales prescribed volume by the condition band and
// annotates intensity changes on the weight hint.
func applyCondition(exercises []RoutineExercise, band progression.Band) {
	for i := range exercises {
		if exercises[i].Sets != nil && band.VolumeModifier != 1.0 {
			scaled := int(math.Round(float64(*exercises[i].Sets) * band.VolumeModifier))
			if scaled < 1 {
				scaled = 1
			}
			exercises[i].Sets = ptr.Ref(scaled)
		}
		if band.IntensityModifier != 1.0 && exercises[i].DurationSec == nil {
			note := fmt.Sprintf("scale weights by %.2f", band.IntensityModifier)
			if exercises[i].WeightHint == "" {
				exercises[i].WeightHint = note
			} else {
				exercises[i].WeightHint += ", " + note
			}
		}
	}
}
