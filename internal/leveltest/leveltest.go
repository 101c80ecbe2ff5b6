// Package leveltest gates and scores level promotion tests. A trainee
// earns the next level by lifting prescribed loads for the three main
// lifts within a time limit, all lifts must pass.
package leveltest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/repstack/trainer/internal/profile"
	"github.com/repstack/trainer/internal/progression"
	"github.com/repstack/trainer/internal/sqlite"
)

const (
	// cooldown is the minimum wait between level tests.
	cooldown = 7 * 24 * time.Hour
	// timeLimitMin bounds how long a test session may take.
	timeLimitMin = 20
	// testReps is how many reps each test lift requires.
	testReps = 5
)

// ErrNotEligible rejects a test attempt by a user who has not cleared
// the cooldown and workout-count gates.
var ErrNotEligible = errors.New("not eligible for a level test")

// requiredWorkouts is how many completed routines a tier demands between
// tests.
func requiredWorkouts(tier progression.Tier) int {
	switch tier {
	case progression.TierBeginner:
		return 10
	case progression.TierIntermediate:
		return 20
	case progression.TierAdvanced:
		return 30
	}
	return 10
}

// liftRatios maps each test lift to its load ratio per target level.
// The load is (height in cm - 100) * ratio, so a 175 cm trainee testing
// into level 4 benches 60 kg.
var liftRatios = map[string][9]float64{
	"bench press": {0, 0, 0.4, 0.6, 0.8, 1.0, 1.2, 1.4, 1.6},
	"back squat":  {0, 0, 0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0},
	"deadlift":    {0, 0, 0.6, 0.9, 1.2, 1.5, 1.8, 2.1, 2.4},
}

// testLifts fixes the order lifts are prescribed in.
var testLifts = []string{"back squat", "bench press", "deadlift"}

// WorkoutCounter reports completed routines, optionally only after a
// point in time.
type WorkoutCounter interface {
	CompletedSince(ctx context.Context, userID int64, since *time.Time) (int, error)
}

// Eligibility is the decision on whether a user may take a level test.
type Eligibility struct {
	Eligible          bool     `json:"eligible"`
	TargetLevel       int      `json:"target_level,omitempty"`
	Reasons           []string `json:"reasons,omitempty"`
	WorkoutsCompleted int      `json:"workouts_completed"`
	WorkoutsRequired  int      `json:"workouts_required"`
}

// LiftRequirement is one prescribed lift in a generated test.
type LiftRequirement struct {
	Name     string  `json:"name"`
	WeightKG float64 `json:"weight_kg"`
	Reps     int     `json:"reps"`
}

// Test is a generated level test.
type Test struct {
	UserID       int64             `json:"user_id"`
	TargetLevel  int               `json:"target_level"`
	Lifts        []LiftRequirement `json:"lifts"`
	TimeLimitMin int               `json:"time_limit_min"`
}

// LiftResult is one reported lift attempt.
type LiftResult struct {
	Name     string  `json:"name"`
	WeightKG float64 `json:"weight_kg"`
	Reps     int     `json:"reps"`
}

// Outcome is the verdict on a submitted test.
type Outcome struct {
	Passed      bool     `json:"passed"`
	TargetLevel int      `json:"target_level"`
	NewLevel    int      `json:"new_level"`
	Feedback    []string `json:"feedback,omitempty"`
}

// Service runs level tests.
type Service struct {
	logger   *slog.Logger
	profiles *profile.Store
	workouts WorkoutCounter
	results  *sqliteResultRepository
	now      func() time.Time
}

// NewService creates a level test service.
func NewService(db *sqlite.Database, logger *slog.Logger, profiles *profile.Store, workouts WorkoutCounter) *Service {
	return &Service{
		logger:   logger,
		profiles: profiles,
		workouts: workouts,
		results:  newSQLiteResultRepository(db),
		now:      time.Now,
	}
}

// CheckEligibility decides whether the user may test for the next level.
// A user who has never tested skips the cooldown and workout-count
// gates.
func (s *Service) CheckEligibility(ctx context.Context, userID int64) (Eligibility, error) {
	prof, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("load profile: %w", err)
	}

	result := Eligibility{TargetLevel: prof.Level + 1}
	if prof.Level >= progression.MaxLevel {
		result.TargetLevel = 0
		result.Reasons = append(result.Reasons, "already at the maximum level")
		return result, nil
	}

	if prof.LastTestAt == nil {
		result.Eligible = true
		return result, nil
	}

	tier := progression.TierFor(prof.Level)
	result.WorkoutsRequired = requiredWorkouts(tier)
	result.WorkoutsCompleted, err = s.workouts.CompletedSince(ctx, userID, prof.LastTestAt)
	if err != nil {
		return Eligibility{}, fmt.Errorf("count workouts since last test: %w", err)
	}

	if since := s.now().Sub(*prof.LastTestAt); since < cooldown {
		wait := cooldown - since
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("last test was %s ago, wait %d more days",
				formatDays(since), int(math.Ceil(wait.Hours()/24))))
	}
	if result.WorkoutsCompleted < result.WorkoutsRequired {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%d of %d workouts completed since the last test",
				result.WorkoutsCompleted, result.WorkoutsRequired))
	}

	result.Eligible = len(result.Reasons) == 0
	return result, nil
}

// Generate prescribes the test for the user's next level. It does not
// check eligibility, callers gate with CheckEligibility first.
func (s *Service) Generate(ctx context.Context, userID int64) (Test, error) {
	prof, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return Test{}, fmt.Errorf("load profile: %w", err)
	}
	if prof.Level >= progression.MaxLevel {
		return Test{}, fmt.Errorf("user %d is already at the maximum level", userID)
	}
	if prof.HeightCM <= 100 {
		return Test{}, fmt.Errorf("profile height %.0f cm cannot anchor test loads", prof.HeightCM)
	}

	target := prof.Level + 1
	test := Test{
		UserID:       userID,
		TargetLevel:  target,
		TimeLimitMin: timeLimitMin,
	}
	for _, lift := range testLifts {
		test.Lifts = append(test.Lifts, LiftRequirement{
			Name:     lift,
			WeightKG: roundToPlate((prof.HeightCM - 100) * liftRatios[lift][target]),
			Reps:     testReps,
		})
	}
	return test, nil
}

// Evaluate scores submitted results against the generated test. The
// user must be eligible, otherwise ErrNotEligible is returned with the
// blocking reasons. Every prescribed lift must reach its load and reps,
// one miss fails the whole test. Lifts that were not prescribed are
// ignored. Pass or fail, the attempt is recorded and the cooldown
// restarts.
func (s *Service) Evaluate(ctx context.Context, userID int64, results []LiftResult) (Outcome, error) {
	eligibility, err := s.CheckEligibility(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	if !eligibility.Eligible {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotEligible, strings.Join(eligibility.Reasons, "; "))
	}

	test, err := s.Generate(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}

	reported := make(map[string]LiftResult, len(results))
	for _, result := range results {
		reported[strings.ToLower(strings.TrimSpace(result.Name))] = result
	}

	outcome := Outcome{Passed: true, TargetLevel: test.TargetLevel}
	for _, required := range test.Lifts {
		result, ok := reported[required.Name]
		switch {
		case !ok:
			outcome.Passed = false
			outcome.Feedback = append(outcome.Feedback,
				fmt.Sprintf("%s: no attempt reported, %.1f kg x %d required",
					required.Name, required.WeightKG, required.Reps))
		case result.WeightKG < required.WeightKG:
			outcome.Passed = false
			outcome.Feedback = append(outcome.Feedback,
				fmt.Sprintf("%s: %.1f kg short of the %.1f kg requirement",
					required.Name, required.WeightKG-result.WeightKG, required.WeightKG))
		case result.Reps < 1:
			outcome.Passed = false
			outcome.Feedback = append(outcome.Feedback,
				fmt.Sprintf("%s: no completed rep at %.1f kg", required.Name, required.WeightKG))
		}
	}

	now := s.now()
	if outcome.Passed {
		if err = s.profiles.UpdateLevel(ctx, userID, test.TargetLevel); err != nil {
			return Outcome{}, fmt.Errorf("promote user: %w", err)
		}
		outcome.NewLevel = test.TargetLevel
		outcome.Feedback = append(outcome.Feedback,
			fmt.Sprintf("promoted to level %d (%s)", test.TargetLevel, progression.GradeFor(test.TargetLevel)))
	} else {
		outcome.NewLevel = test.TargetLevel - 1
	}
	if err = s.profiles.SetLastTestAt(ctx, userID, now); err != nil {
		return Outcome{}, fmt.Errorf("record test time: %w", err)
	}

	if err = s.results.Save(ctx, userID, test.TargetLevel, outcome.Passed, strings.Join(outcome.Feedback, "; ")); err != nil {
		// History is informative, losing a row does not void the verdict.
		s.logger.LogAttrs(ctx, slog.LevelError, "save level test result",
			slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return outcome, nil
}

// roundToPlate rounds a load to the nearest 2.5 kg increment.
func roundToPlate(weight float64) float64 {
	return math.Round(weight/2.5) * 2.5
}

func formatDays(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
