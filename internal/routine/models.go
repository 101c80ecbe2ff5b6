// Package routine generates daily training routines. Generation layers a
// language model over a deterministic exercise pool: the model proposes a
// routine from the pool, validation and resolution pin every exercise to
// stored data, and a deterministic fallback guarantees a safe routine
// when the model is unavailable or returns garbage.
package routine

import "time"

// Strategy selects how a routine is generated.
type Strategy string

const (
	// StrategyCatalog serves today's program workout directly, no model
	// involved.
	StrategyCatalog Strategy = "catalog"
	// StrategyCreative allows the model to invent exercises beyond the
	// pool. Invented exercises are persisted for reuse.
	StrategyCreative Strategy = "creative"
	// StrategyAgentic runs a bounded tool-calling loop so the model can
	// inspect the pool, the exercise database and training variables
	// before answering.
	StrategyAgentic Strategy = "agentic"
)

// Exercise is a stored exercise definition.
type Exercise struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	TargetMuscle   string `json:"target_muscle"`
	Equipment      string `json:"equipment"`
	Difficulty     int    `json:"difficulty"`
	TechniqueNotes string `json:"technique_notes,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
}

// RoutineExercise is one prescribed exercise inside a generated routine.
// Time-based movements carry DurationSec and no reps.
type RoutineExercise struct {
	ExerciseID   int64    `json:"exercise_id,omitempty"`
	Name         string   `json:"name"`
	TargetMuscle string   `json:"target_muscle,omitempty"`
	Sets         *int     `json:"sets,omitempty"`
	Reps         *int     `json:"reps,omitempty"`
	DurationSec  *int     `json:"duration_sec,omitempty"`
	RestSec      int      `json:"rest_sec"`
	WeightHint   string   `json:"weight_hint,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Tips         []string `json:"tips,omitempty"`
}

// Routine is one generated training session.
type Routine struct {
	ID             string            `json:"id"`
	UserID         int64             `json:"user_id"`
	Date           time.Time         `json:"date"`
	Level          int               `json:"level"`
	Creative       bool              `json:"creative"`
	ConditionScore float64           `json:"condition_score"`
	DurationMin    int               `json:"duration_min"`
	Notes          string            `json:"notes,omitempty"`
	Exercises      []RoutineExercise `json:"exercises"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// PoolEntry is one exercise the model may pick from. Entries come from
// today's catalog program and from the exercise database.
type PoolEntry struct {
	ExerciseID   int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	TargetMuscle string `json:"target_muscle"`
	Equipment    string `json:"equipment,omitempty"`
	Difficulty   int    `json:"difficulty,omitempty"`
	Sets         *int   `json:"sets,omitempty"`
	Reps         int    `json:"reps,omitempty"`
	RestSec      int    `json:"rest_sec,omitempty"`
	WeightHint   string `json:"weight_hint,omitempty"`
	Note         string `json:"note,omitempty"`
	Source       string `json:"source"`
}

// Pool entry sources.
const (
	sourceProgram  = "program"
	sourceDatabase = "database"
)

// fillToTotal reports whether a program entry prescribes a total rep
// target instead of fixed sets, mirroring the catalog template shape.
func (e PoolEntry) fillToTotal() bool {
	return e.Source == sourceProgram && e.Sets == nil && e.Reps >= 100
}
