// Package knowledge retrieves fitness knowledge chunks for routine
// generation and coaching tips. Retrieval degrades through three tiers:
// semantic similarity when an embedder is configured, keyword matching
// otherwise, and a plain muscle-group lookup as the last resort.
package knowledge

import "strings"

// KnowledgeType partitions the knowledge base by intent.
type KnowledgeType string

const (
	TypeExerciseTechnique KnowledgeType = "exercise_technique"
	TypeFormCheck         KnowledgeType = "form_check"
	TypeRoutineDesign     KnowledgeType = "routine_design"
	TypeNutritionRecovery KnowledgeType = "nutrition_recovery"
)

// KnowledgeTypes lists every valid knowledge type.
var KnowledgeTypes = []KnowledgeType{
	TypeExerciseTechnique,
	TypeFormCheck,
	TypeRoutineDesign,
	TypeNutritionRecovery,
}

// Valid reports whether t is a known knowledge type.
func (t KnowledgeType) Valid() bool {
	switch t {
	case TypeExerciseTechnique, TypeFormCheck, TypeRoutineDesign, TypeNutritionRecovery:
		return true
	}
	return false
}

// Chunk is one retrievable piece of fitness knowledge.
type Chunk struct {
	ID           int64
	Type         KnowledgeType
	Content      string
	Summary      string
	ExerciseName string
	MuscleGroup  string
	MinLevel     int
	MaxLevel     int
	Embedding    []float64
	SourceTitle  string
	SourceURL    string
}

// MatchesExercise reports whether the chunk applies to the named
// exercise. ExerciseName may hold a comma-separated list.
func (c Chunk) MatchesExercise(name string) bool {
	if c.ExerciseName == "" || name == "" {
		return false
	}
	for _, candidate := range strings.Split(c.ExerciseName, ",") {
		if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
