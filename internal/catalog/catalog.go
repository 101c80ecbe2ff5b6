// Package catalog holds the canonical training programs. Programs are
// organised per tier as repeating multi-week cycles of Monday to Friday
// workouts and are loaded from an embedded YAML document at startup.
package catalog

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/repstack/trainer/internal/progression"
	"gopkg.in/yaml.v3"
)

//go:embed programs.yaml
var programsYAML []byte

// ROM describes the intended range of motion for an exercise.
type ROM string

const (
	ROMFull   ROM = "full"
	ROMMedium ROM = "medium"
	ROMShort  ROM = "short"
)

// ExerciseTemplate is one prescribed exercise inside a catalog workout.
//
// Sets is nil for fill-to-total entries, where Reps carries the total rep
// target for the day rather than reps per set. Use FillToTotal to detect
// them instead of inspecting the fields directly.
type ExerciseTemplate struct {
	Name       string `yaml:"name"`
	Target     string `yaml:"target"`
	Sets       *int   `yaml:"sets"`
	Reps       int    `yaml:"reps"`
	WeightHint string `yaml:"weight_hint"`
	TempoBPM   int    `yaml:"tempo_bpm"`
	RestSec    int    `yaml:"rest_sec"`
	ROM        ROM    `yaml:"rom"`
	Note       string `yaml:"note"`
}

// FillToTotal reports whether the entry prescribes a total rep target
// to be split across however many sets the trainee needs.
func (e ExerciseTemplate) FillToTotal() bool {
	return e.Sets == nil && e.Reps >= 100
}

// Workout is one day of a catalog program.
type Workout struct {
	Focus     string             `yaml:"focus"`
	Exercises []ExerciseTemplate `yaml:"exercises"`
}

type week struct {
	Days map[string]Workout `yaml:"days"`
}

type tierProgram struct {
	CycleWeeks int    `yaml:"cycle_weeks"`
	Weeks      []week `yaml:"weeks"`
}

type document struct {
	Version int                    `yaml:"version"`
	Tiers   map[string]tierProgram `yaml:"tiers"`
}

// Catalog is the loaded set of tier programs.
type Catalog struct {
	tiers map[progression.Tier]tierProgram
}

var dayKeys = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
}

// Load parses and validates the embedded program document.
func Load() (*Catalog, error) {
	return parse(programsYAML)
}

func parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal programs: %w", err)
	}
	c := &Catalog{tiers: map[progression.Tier]tierProgram{}}
	for _, tier := range []progression.Tier{progression.TierBeginner, progression.TierIntermediate, progression.TierAdvanced} {
		program, ok := doc.Tiers[string(tier)]
		if !ok {
			return nil, fmt.Errorf("tier %s missing from program document", tier)
		}
		if err := validateProgram(tier, program); err != nil {
			return nil, err
		}
		c.tiers[tier] = program
	}
	return c, nil
}

func validateProgram(tier progression.Tier, program tierProgram) error {
	if program.CycleWeeks < 1 {
		return fmt.Errorf("tier %s: cycle_weeks must be positive, got %d", tier, program.CycleWeeks)
	}
	if len(program.Weeks) != program.CycleWeeks {
		return fmt.Errorf("tier %s: %d weeks defined but cycle_weeks is %d", tier, len(program.Weeks), program.CycleWeeks)
	}
	for i, wk := range program.Weeks {
		for _, key := range dayKeys {
			workout, ok := wk.Days[key]
			if !ok {
				return fmt.Errorf("tier %s week %d: day %s missing", tier, i+1, key)
			}
			if len(workout.Exercises) == 0 {
				return fmt.Errorf("tier %s week %d %s: no exercises", tier, i+1, key)
			}
			for _, exercise := range workout.Exercises {
				if exercise.Name == "" || exercise.Target == "" {
					return fmt.Errorf("tier %s week %d %s: exercise missing name or target", tier, i+1, key)
				}
				if exercise.Sets == nil && exercise.Reps < 100 {
					return fmt.Errorf("tier %s week %d %s: %s has no sets and reps below a total target", tier, i+1, key, exercise.Name)
				}
				// Zero rest means the tier default applies, zero tempo
				// means an untimed hold. Negatives are document errors.
				if exercise.RestSec < 0 {
					return fmt.Errorf("tier %s week %d %s: %s has negative rest_sec %d", tier, i+1, key, exercise.Name, exercise.RestSec)
				}
				if exercise.TempoBPM < 0 {
					return fmt.Errorf("tier %s week %d %s: %s has negative tempo_bpm %d", tier, i+1, key, exercise.Name, exercise.TempoBPM)
				}
			}
		}
	}
	return nil
}

// WorkoutFor returns the catalog workout for the given tier, zero-based
// week index and weekday. Week indexes wrap around the tier's cycle
// length, so week 4 of a 4-week cycle is week 0 again. Saturday and
// Sunday fold onto Friday's workout.
func (c *Catalog) WorkoutFor(tier progression.Tier, weekIndex int, weekday time.Weekday) (Workout, bool) {
	program, ok := c.tiers[tier]
	if !ok {
		return Workout{}, false
	}
	if weekday == time.Saturday || weekday == time.Sunday {
		weekday = time.Friday
	}
	key, ok := dayKeys[weekday]
	if !ok {
		return Workout{}, false
	}
	index := weekIndex % program.CycleWeeks
	if index < 0 {
		index += program.CycleWeeks
	}
	workout, ok := program.Weeks[index].Days[key]
	return workout, ok
}

// CycleWeeks returns the cycle length of the given tier's program.
func (c *Catalog) CycleWeeks(tier progression.Tier) int {
	return c.tiers[tier].CycleWeeks
}
