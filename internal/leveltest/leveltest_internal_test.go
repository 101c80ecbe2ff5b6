package leveltest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/repstack/trainer/internal/profile"
	"github.com/repstack/trainer/internal/sqlite"
	"github.com/repstack/trainer/internal/testhelpers"
)

type fakeWorkoutCounter struct {
	count int
	err   error
}

func (f *fakeWorkoutCounter) CompletedSince(context.Context, int64, *time.Time) (int, error) {
	return f.count, f.err
}

type fixture struct {
	service  *Service
	profiles *profile.Store
	workouts *fakeWorkoutCounter
	userID   int64
}

func newFixture(t *testing.T, level int) fixture {
	t.Helper()
	ctx := context.Background()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})

	profiles := profile.NewStore(db)
	prof, err := profiles.Create(ctx, profile.Profile{
		DisplayName: "Testaaja",
		HeightCM:    175,
		WeightKG:    72,
		Level:       level,
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	workouts := &fakeWorkoutCounter{}
	return fixture{
		service:  NewService(db, logger, profiles, workouts),
		profiles: profiles,
		workouts: workouts,
		userID:   prof.UserID,
	}
}

func TestGeneratePrescribesHeightAnchoredLoads(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	test, err := f.service.Generate(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if test.TargetLevel != 4 {
		t.Errorf("got target level %d, want 4", test.TargetLevel)
	}
	if test.TimeLimitMin != timeLimitMin {
		t.Errorf("got time limit %d, want %d", test.TimeLimitMin, timeLimitMin)
	}

	want := map[string]float64{
		"back squat":  75.0,
		"bench press": 60.0,
		"deadlift":    90.0,
	}
	if len(test.Lifts) != len(want) {
		t.Fatalf("got %d lifts, want %d", len(test.Lifts), len(want))
	}
	for _, lift := range test.Lifts {
		if lift.WeightKG != want[lift.Name] {
			t.Errorf("%s prescribed %.1f kg, want %.1f", lift.Name, lift.WeightKG, want[lift.Name])
		}
		if lift.Reps != testReps {
			t.Errorf("%s prescribed %d reps, want %d", lift.Name, lift.Reps, testReps)
		}
	}
}

func TestLiftRatiosAreMonotonic(t *testing.T) {
	t.Parallel()

	for lift, ratios := range liftRatios {
		for level := 3; level <= 8; level++ {
			if ratios[level] <= ratios[level-1] {
				t.Errorf("%s ratio does not grow from level %d (%.2f) to %d (%.2f)",
					lift, level-1, ratios[level-1], level, ratios[level])
			}
		}
	}
}

func TestGenerateRefusedAtMaxLevel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	if _, err := f.service.Generate(context.Background(), f.userID); err == nil {
		t.Error("expected error at maximum level")
	}
}

func TestCheckEligibility(t *testing.T) {
	t.Parallel()

	t.Run("never tested is eligible immediately", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)
		f.workouts.count = 0

		got, err := f.service.CheckEligibility(context.Background(), f.userID)
		if err != nil {
			t.Fatalf("check eligibility: %v", err)
		}
		if !got.Eligible {
			t.Errorf("first-ever test gated: %v", got.Reasons)
		}
		if got.TargetLevel != 3 {
			t.Errorf("got target level %d, want 3", got.TargetLevel)
		}
	})

	t.Run("max level is never eligible", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 8)

		got, err := f.service.CheckEligibility(context.Background(), f.userID)
		if err != nil {
			t.Fatalf("check eligibility: %v", err)
		}
		if got.Eligible || len(got.Reasons) == 0 {
			t.Errorf("level 8 user deemed eligible: %+v", got)
		}
	})

	t.Run("cooldown and workout count both gate", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 2)
		ctx := context.Background()

		twoDaysAgo := time.Now().Add(-2 * 24 * time.Hour)
		if err := f.profiles.SetLastTestAt(ctx, f.userID, twoDaysAgo); err != nil {
			t.Fatalf("set last test: %v", err)
		}
		f.workouts.count = 4

		got, err := f.service.CheckEligibility(ctx, f.userID)
		if err != nil {
			t.Fatalf("check eligibility: %v", err)
		}
		if got.Eligible {
			t.Error("expected gating")
		}
		if len(got.Reasons) != 2 {
			t.Errorf("got reasons %v, want cooldown and workout count", got.Reasons)
		}
		if got.WorkoutsCompleted != 4 || got.WorkoutsRequired != 10 {
			t.Errorf("got %d/%d workouts, want 4/10", got.WorkoutsCompleted, got.WorkoutsRequired)
		}
	})

	t.Run("passes once both gates clear", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, 5)
		ctx := context.Background()

		if err := f.profiles.SetLastTestAt(ctx, f.userID, time.Now().Add(-10*24*time.Hour)); err != nil {
			t.Fatalf("set last test: %v", err)
		}
		f.workouts.count = 25

		got, err := f.service.CheckEligibility(ctx, f.userID)
		if err != nil {
			t.Fatalf("check eligibility: %v", err)
		}
		if !got.Eligible {
			t.Errorf("expected eligibility, got %v", got.Reasons)
		}
		if got.WorkoutsRequired != 20 {
			t.Errorf("intermediate tier requires %d workouts, want 20", got.WorkoutsRequired)
		}
	})
}

func TestEvaluatePassPromotes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	ctx := context.Background()

	outcome, err := f.service.Evaluate(ctx, f.userID, []LiftResult{
		{Name: "Back Squat", WeightKG: 75, Reps: 5},
		// A single rep at the required load clears the lift.
		{Name: "Bench Press", WeightKG: 60, Reps: 1},
		{Name: "Deadlift", WeightKG: 90, Reps: 5},
		{Name: "Biceps Curl", WeightKG: 20, Reps: 12}, // not prescribed, ignored
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !outcome.Passed || outcome.NewLevel != 4 {
		t.Fatalf("got passed=%v new level %d, want promotion to 4", outcome.Passed, outcome.NewLevel)
	}

	prof, err := f.profiles.Get(ctx, f.userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if prof.Level != 4 {
		t.Errorf("stored level is %d, want 4", prof.Level)
	}
	if prof.LastTestAt == nil {
		t.Error("passing test did not record last_test_at")
	}

	attempts, err := f.service.History(ctx, f.userID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(attempts) != 1 || !attempts[0].Passed || attempts[0].TargetLevel != 4 {
		t.Errorf("recorded attempt %+v, want one passed attempt at level 4", attempts)
	}
}

func TestEvaluateOneMissFailsAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	ctx := context.Background()

	outcome, err := f.service.Evaluate(ctx, f.userID, []LiftResult{
		{Name: "back squat", WeightKG: 80, Reps: 5},
		{Name: "bench press", WeightKG: 55, Reps: 5}, // 5 kg short
		{Name: "deadlift", WeightKG: 90, Reps: 5},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if outcome.Passed {
		t.Fatal("short bench should fail the whole test")
	}
	if outcome.NewLevel != 3 {
		t.Errorf("failed test changed level to %d", outcome.NewLevel)
	}
	if len(outcome.Feedback) != 1 || !strings.Contains(outcome.Feedback[0], "5.0 kg short") {
		t.Errorf("feedback %v should name the 5.0 kg gap", outcome.Feedback)
	}

	prof, err := f.profiles.Get(ctx, f.userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if prof.Level != 3 {
		t.Errorf("stored level is %d, want unchanged 3", prof.Level)
	}
	if prof.LastTestAt == nil {
		t.Error("failing test must still restart the cooldown")
	}
}

func TestEvaluateMissingLiftFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	outcome, err := f.service.Evaluate(context.Background(), f.userID, []LiftResult{
		{Name: "back squat", WeightKG: 80, Reps: 5},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if outcome.Passed {
		t.Fatal("missing lifts should fail the test")
	}
	if len(outcome.Feedback) != 2 {
		t.Errorf("got feedback %v, want entries for both missing lifts", outcome.Feedback)
	}
}

func TestEvaluateZeroRepsFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	outcome, err := f.service.Evaluate(context.Background(), f.userID, []LiftResult{
		{Name: "back squat", WeightKG: 80, Reps: 5},
		{Name: "bench press", WeightKG: 60, Reps: 0},
		{Name: "deadlift", WeightKG: 90, Reps: 5},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if outcome.Passed {
		t.Fatal("zero reps at the required load should fail")
	}
	if len(outcome.Feedback) != 1 || !strings.Contains(outcome.Feedback[0], "no completed rep") {
		t.Errorf("feedback %v should name the missing rep", outcome.Feedback)
	}
}

func TestEvaluateRefusedDuringCooldown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	ctx := context.Background()
	results := []LiftResult{
		{Name: "back squat", WeightKG: 80, Reps: 5},
		{Name: "bench press", WeightKG: 65, Reps: 5},
		{Name: "deadlift", WeightKG: 95, Reps: 5},
	}

	if _, err := f.service.Evaluate(ctx, f.userID, results); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	// The attempt restarted the cooldown, a retry the same day is out.
	_, err := f.service.Evaluate(ctx, f.userID, results)
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("got error %v, want ErrNotEligible", err)
	}
	if !strings.Contains(err.Error(), "wait") {
		t.Errorf("refusal %q should name the cooldown", err)
	}
}

func TestRoundToPlate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{in: 60.0, want: 60.0},
		{in: 61.0, want: 60.0},
		{in: 61.3, want: 62.5},
		{in: 63.7, want: 62.5},
		{in: 63.8, want: 65.0},
	}
	for _, tt := range tests {
		if got := roundToPlate(tt.in); got != tt.want {
			t.Errorf("roundToPlate(%.1f) = %.1f, want %.1f", tt.in, got, tt.want)
		}
	}
}
