package routine

import (
	"context"
	"fmt"
	"strings"

	"github.com/repstack/trainer/internal/catalog"
	"github.com/repstack/trainer/internal/progression"
)

const (
	defaultSets = 3
	defaultReps = 10
	// minPoolSize is the guaranteed floor for the exercise pool. Filters
	// relax until at least this many entries remain.
	minPoolSize = 3
)

// defaultRestSec returns the default rest between sets for a tier.
func defaultRestSec(tier progression.Tier) int {
	switch tier {
	case progression.TierBeginner:
		return 90
	case progression.TierIntermediate:
		return 75
	case progression.TierAdvanced:
		return 60
	}
	return 90
}

// poolRequest describes the inputs for building an exercise pool.
type poolRequest struct {
	tier progression.Tier
	// muscles are the muscle groups extracted from the user's goal, in
	// priority order.
	muscles []string
	// workout is today's catalog program, zero when none applies.
	workout catalog.Workout
	// equipment restricts database entries to the listed equipment.
	// Bodyweight entries always pass. Empty allows everything.
	equipment []string
	// recentNames pushes recently served exercises behind fresh ones.
	recentNames map[string]bool
}

// buildPool assembles the exercise pool the model picks from: today's
// program entries first, then database exercises for the goal muscles
// within the tier's difficulty ceiling. Filters relax until the pool
// holds at least minPoolSize entries.
func buildPool(ctx context.Context, exercises *sqliteExerciseRepository, req poolRequest) ([]PoolEntry, error) {
	rest := defaultRestSec(req.tier)
	ceiling := progression.DifficultyCeiling(req.tier)

	var pool []PoolEntry
	seen := map[string]bool{}
	add := func(entry PoolEntry) {
		key := strings.ToLower(strings.TrimSpace(entry.Name))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		pool = append(pool, entry)
	}

	for _, tmpl := range req.workout.Exercises {
		entry := PoolEntry{
			Name:         tmpl.Name,
			TargetMuscle: tmpl.Target,
			Sets:         tmpl.Sets,
			Reps:         tmpl.Reps,
			RestSec:      tmpl.RestSec,
			WeightHint:   tmpl.WeightHint,
			Note:         tmpl.Note,
			Source:       sourceProgram,
		}
		if entry.RestSec == 0 {
			entry.RestSec = rest
		}
		if ex, found, err := exercises.FindByName(ctx, tmpl.Name); err != nil {
			return nil, fmt.Errorf("resolve program exercise %q: %w", tmpl.Name, err)
		} else if found {
			entry.ExerciseID = ex.ID
			entry.Equipment = ex.Equipment
			entry.Difficulty = ex.Difficulty
		}
		add(entry)
	}

	// Database entries for the goal muscles, relaxing the filters step by
	// step until the pool is big enough.
	filters := []struct {
		muscles       []string
		maxDifficulty int
	}{
		{muscles: req.muscles, maxDifficulty: ceiling},
		{muscles: nil, maxDifficulty: ceiling},
		{muscles: nil, maxDifficulty: 0},
	}
	for _, filter := range filters {
		stored, err := exercises.List(ctx, filter.muscles, filter.maxDifficulty)
		if err != nil {
			return nil, fmt.Errorf("list pool exercises: %w", err)
		}
		for _, ex := range stored {
			if !equipmentAllowed(ex.Equipment, req.equipment) {
				continue
			}
			add(PoolEntry{
				ExerciseID:   ex.ID,
				Name:         ex.Name,
				TargetMuscle: ex.TargetMuscle,
				Equipment:    ex.Equipment,
				Difficulty:   ex.Difficulty,
				Reps:         defaultReps,
				RestSec:      rest,
				Source:       sourceDatabase,
			})
		}
		if len(pool) >= minPoolSize {
			break
		}
		// The equipment filter is the last to go.
		if filter.maxDifficulty == 0 && len(pool) < minPoolSize {
			for _, ex := range stored {
				add(PoolEntry{
					ExerciseID:   ex.ID,
					Name:         ex.Name,
					TargetMuscle: ex.TargetMuscle,
					Equipment:    ex.Equipment,
					Difficulty:   ex.Difficulty,
					Reps:         defaultReps,
					RestSec:      rest,
					Source:       sourceDatabase,
				})
			}
		}
	}

	return deprioritizeRecent(pool, req.recentNames), nil
}

func equipmentAllowed(equipment string, available []string) bool {
	if len(available) == 0 || equipment == "bodyweight" {
		return true
	}
	for _, item := range available {
		if strings.EqualFold(item, equipment) {
			return true
		}
	}
	return false
}

// deprioritizeRecent moves recently served database entries behind fresh
// ones. Program entries keep their place, today's program wins over
// variety.
func deprioritizeRecent(pool []PoolEntry, recent map[string]bool) []PoolEntry {
	if len(recent) == 0 {
		return pool
	}
	ordered := make([]PoolEntry, 0, len(pool))
	var stale []PoolEntry
	for _, entry := range pool {
		if entry.Source == sourceDatabase && recent[entry.Name] {
			stale = append(stale, entry)
		} else {
			ordered = append(ordered, entry)
		}
	}
	return append(ordered, stale...)
}
