package routine

import (
	"context"
	"strings"

	"github.com/repstack/trainer/internal/knowledge"
)

// maxTipsPerExercise bounds how many coaching tips enrichment attaches
// to a single exercise.
const maxTipsPerExercise = 3

// enrich attaches technique tips and reference links from the knowledge
// base to routine exercises, up to maxTipsPerExercise each. A stored
// demonstration video takes the first slot when the exercise has one.
// Retrieval problems are silent, a routine without tips is still a
// routine.
func (g *generator) enrich(ctx context.Context, userID int64, level int, exercises []RoutineExercise) {
	if g.retriever == nil {
		return
	}
	for i := range exercises {
		tips := make([]string, 0, maxTipsPerExercise)
		if video := g.videoTip(ctx, exercises[i]); video != "" {
			tips = append(tips, video)
		}
		chunks := g.retriever.Search(ctx, knowledge.Query{
			Type:   knowledge.TypeExerciseTechnique,
			Text:   exercises[i].Name,
			Muscle: exercises[i].TargetMuscle,
			Level:  level,
			UserID: userID,
		})
		tips = append(tips, pickTips(chunks, exercises[i], maxTipsPerExercise-len(tips))...)
		exercises[i].Tips = append(exercises[i].Tips, tips...)
	}
}

// videoTip links the stored demonstration video for catalog exercises.
func (g *generator) videoTip(ctx context.Context, exercise RoutineExercise) string {
	if exercise.ExerciseID == 0 {
		return ""
	}
	stored, err := g.exercises.Get(ctx, exercise.ExerciseID)
	if err != nil || stored.VideoURL == "" {
		return ""
	}
	return "watch: " + stored.VideoURL
}

// pickTips selects up to limit distinct chunks for an exercise,
// explicit exercise-name matches before muscle-group matches.
func pickTips(chunks []knowledge.Chunk, exercise RoutineExercise, limit int) []string {
	var tips []string
	used := make(map[int64]bool, limit)
	add := func(chunk knowledge.Chunk) {
		if len(tips) >= limit || used[chunk.ID] {
			return
		}
		used[chunk.ID] = true
		tips = append(tips, tipText(chunk))
	}
	for _, chunk := range chunks {
		if chunk.MatchesExercise(exercise.Name) {
			add(chunk)
		}
	}
	for _, chunk := range chunks {
		if strings.EqualFold(chunk.MuscleGroup, exercise.TargetMuscle) {
			add(chunk)
		}
	}
	return tips
}

func tipText(chunk knowledge.Chunk) string {
	text := chunk.Summary
	if text == "" {
		// Fall back to the first sentence of the content.
		text = strings.TrimSpace(chunk.Content)
		if idx := strings.Index(text, ". "); idx > 0 {
			text = text[:idx+1]
		}
	}
	if chunk.SourceURL != "" {
		text += " (" + chunk.SourceURL + ")"
	}
	return text
}
