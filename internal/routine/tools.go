package routine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/repstack/trainer/internal/knowledge"
	"github.com/repstack/trainer/internal/progression"
)

// maxToolIterations bounds the agentic loop. When the model is still
// calling tools after this many rounds it gets one final tools-off turn
// to answer.
const maxToolIterations = 10

// toolbox executes the tools offered to the model during agentic
// generation.
type toolbox struct {
	pc        promptContext
	exercises *sqliteExerciseRepository
	retriever *knowledge.Retriever
}

func (t *toolbox) definitions() []toolDefinition {
	return []toolDefinition{
		{
			name:        "get_exercise_pool",
			description: "Returns the exercise pool for today's session.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			name:        "search_exercises",
			description: "Searches the exercise database by muscle group and difficulty.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"muscle": map[string]any{
						"type":        "string",
						"description": "Target muscle group, for example chest or legs.",
					},
					"max_difficulty": map[string]any{
						"type":        "integer",
						"description": "Highest allowed difficulty, 1 to 4.",
					},
				},
			},
		},
		{
			name:        "get_training_variables",
			description: "Returns the trainee's level, tier, condition and default training variables.",
			parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			name:        "search_fitness_knowledge",
			description: "Searches the fitness knowledge base.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Free-text search query.",
					},
					"knowledge_type": map[string]any{
						"type": "string",
						"enum": []string{"exercise_technique", "form_check", "routine_design", "nutrition_recovery"},
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "How many results to return, default 5.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// execute runs one tool call and returns its result as a string for the
// tool message. Tool failures are reported to the model rather than
// aborting the loop.
func (t *toolbox) execute(ctx context.Context, call toolCall) string {
	result, err := t.dispatch(ctx, call)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

func (t *toolbox) dispatch(ctx context.Context, call toolCall) (string, error) {
	switch call.name {
	case "get_exercise_pool":
		return poolJSON(t.pc.pool), nil

	case "search_exercises":
		var args struct {
			Muscle        string `json:"muscle"`
			MaxDifficulty int    `json:"max_difficulty"`
		}
		if err := json.Unmarshal([]byte(call.arguments), &args); err != nil {
			return "", fmt.Errorf("parse search_exercises arguments: %w", err)
		}
		var muscles []string
		if args.Muscle != "" {
			muscles = []string{args.Muscle}
		}
		found, err := t.exercises.List(ctx, muscles, args.MaxDifficulty)
		if err != nil {
			return "", fmt.Errorf("search exercises: %w", err)
		}
		data, err := json.Marshal(found)
		if err != nil {
			return "", fmt.Errorf("marshal exercises: %w", err)
		}
		return string(data), nil

	case "get_training_variables":
		vars := map[string]any{
			"level":              t.pc.profile.Level,
			"grade":              progression.GradeFor(t.pc.profile.Level),
			"tier":               string(t.pc.tier),
			"weight_multiplier":  progression.WeightMultiplier(t.pc.profile.Level),
			"condition_score":    t.pc.score,
			"condition_band":     t.pc.band.Name,
			"volume_modifier":    t.pc.band.VolumeModifier,
			"intensity_modifier": t.pc.band.IntensityModifier,
			"default_rest_sec":   defaultRestSec(t.pc.tier),
			"default_sets":       defaultSets,
			"default_reps":       defaultReps,
			"session_minutes":    t.pc.durationMin,
		}
		data, err := json.Marshal(vars)
		if err != nil {
			return "", fmt.Errorf("marshal training variables: %w", err)
		}
		return string(data), nil

	case "search_fitness_knowledge":
		var args struct {
			Query         string `json:"query"`
			KnowledgeType string `json:"knowledge_type"`
			Limit         int    `json:"limit"`
		}
		if err := json.Unmarshal([]byte(call.arguments), &args); err != nil {
			return "", fmt.Errorf("parse search_fitness_knowledge arguments: %w", err)
		}
		knowledgeType := knowledge.KnowledgeType(args.KnowledgeType)
		if args.KnowledgeType == "" {
			knowledgeType = knowledge.TypeRoutineDesign
		}
		chunks := t.retriever.Search(ctx, knowledge.Query{
			Type:   knowledgeType,
			Text:   args.Query,
			Level:  t.pc.profile.Level,
			Limit:  args.Limit,
			UserID: t.pc.profile.UserID,
		})
		summaries := make([]map[string]string, 0, len(chunks))
		for _, chunk := range chunks {
			summaries = append(summaries, map[string]string{
				"summary": chunk.Summary,
				"content": chunk.Content,
				"source":  chunk.SourceTitle,
			})
		}
		data, err := json.Marshal(summaries)
		if err != nil {
			return "", fmt.Errorf("marshal knowledge results: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unsupported function: %s", call.name)
}
