package routine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// llmRoutine is the JSON shape the model is instructed to return.
type llmRoutine struct {
	Exercises   []llmExercise `json:"exercises"`
	DurationMin int           `json:"duration_min"`
	Notes       string        `json:"notes"`
}

type llmExercise struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	TargetMuscle string `json:"target_muscle"`
	Sets         *int   `json:"sets"`
	Reps         *int   `json:"reps"`
	DurationSec  *int   `json:"duration_sec"`
	RestSec      int    `json:"rest_sec"`
	WeightHint   string `json:"weight_hint"`
	Instructions string `json:"instructions"`
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls a JSON object out of model output. Fenced code
// blocks win, otherwise the substring from the first opening brace to
// the last closing brace is taken.
func extractJSON(content string) (string, error) {
	if match := fencedJSONPattern.FindStringSubmatch(content); match != nil {
		return match[1], nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return content[start : end+1], nil
}

// parseRoutine extracts and validates the routine JSON from model
// output.
func parseRoutine(content string) (llmRoutine, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return llmRoutine{}, err
	}
	var parsed llmRoutine
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return llmRoutine{}, fmt.Errorf("unmarshal routine JSON: %w", err)
	}
	if len(parsed.Exercises) == 0 {
		return llmRoutine{}, fmt.Errorf("model routine has no exercises")
	}
	for i, exercise := range parsed.Exercises {
		if strings.TrimSpace(exercise.Name) == "" && exercise.ID == 0 {
			return llmRoutine{}, fmt.Errorf("exercise %d has neither name nor id", i+1)
		}
	}
	if len(parsed.Exercises) > maxRoutineExercises {
		parsed.Exercises = parsed.Exercises[:maxRoutineExercises]
	}
	return parsed, nil
}

// maxRoutineExercises caps how many exercises a routine may hold no
// matter what the model returns.
const maxRoutineExercises = 8
