package routine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/repstack/trainer/internal/catalog"
	"github.com/repstack/trainer/internal/knowledge"
	"github.com/repstack/trainer/internal/profile"
	"github.com/repstack/trainer/internal/progression"
	"github.com/repstack/trainer/internal/sqlite"
	"github.com/repstack/trainer/internal/testhelpers"
)

// fakeBackend replays scripted responses and records whether tools were
// offered on each call.
type fakeBackend struct {
	responses []chatMessage
	err       error
	toolCalls []int // number of tools offered per call
	next      int
}

func (f *fakeBackend) complete(_ context.Context, _ []chatMessage, tools []toolDefinition) (chatMessage, error) {
	f.toolCalls = append(f.toolCalls, len(tools))
	if f.err != nil {
		return chatMessage{}, f.err
	}
	if f.next >= len(f.responses) {
		return chatMessage{}, errors.New("fake backend exhausted")
	}
	reply := f.responses[f.next]
	f.next++
	return reply, nil
}

type serviceFixture struct {
	service *Service
	backend *fakeBackend
	db      *sqlite.Database
	userID  int64
}

func newServiceFixture(t *testing.T, backend *fakeBackend) serviceFixture {
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

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	profiles := profile.NewStore(db)
	prof, err := profiles.Create(ctx, profile.Profile{
		DisplayName: "Testaaja",
		HeightCM:    175,
		WeightKG:    72,
		FitnessGoal: "bigger chest and stronger legs",
		Level:       2,
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	retriever := knowledge.NewRetriever(db, nil, knowledge.NewMemoryNoveltyStore(), logger)
	var b textBackend
	if backend != nil {
		b = backend
	}
	svc := newService(db, logger, cat, retriever, profiles, b)
	return serviceFixture{service: svc, backend: backend, db: db, userID: prof.UserID}
}

func modelAnswer(body string) chatMessage {
	return chatMessage{role: roleAssistant, content: "```json\n" + body + "\n```"}
}

func TestGenerateFromModelAnswer(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{responses: []chatMessage{modelAnswer(`{
		"exercises": [
			{"name": "Push-Up", "sets": 4, "reps": 12},
			{"name": "Bench Press", "sets": 3, "reps": 10, "weight_hint": "light bar"},
			{"name": "Bodyweight Squat", "sets": 3, "reps": 15},
			{"name": "Plank"}
		],
		"duration_min": 40,
		"notes": "solid day"
	}`)}}
	f := newServiceFixture(t, backend)

	routine, err := f.service.Generate(context.Background(), GenerateRequest{
		UserID:   f.userID,
		Strategy: StrategyCreative,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(routine.Exercises) != 4 {
		t.Fatalf("got %d exercises, want 4", len(routine.Exercises))
	}
	if routine.Level != 2 || !routine.Creative {
		t.Errorf("got level %d creative %v", routine.Level, routine.Creative)
	}
	if routine.DurationMin != 40 || routine.Notes != "solid day" {
		t.Errorf("got duration %d notes %q", routine.DurationMin, routine.Notes)
	}
	if routine.ConditionScore != 3.0 {
		t.Errorf("neutral condition scored %.2f, want 3.0", routine.ConditionScore)
	}
	if !strings.HasPrefix(routine.ID, "routine_l2_") {
		t.Errorf("unexpected routine id %q", routine.ID)
	}

	for _, exercise := range routine.Exercises {
		if exercise.ExerciseID == 0 {
			t.Errorf("%s was not resolved to a stored exercise", exercise.Name)
		}
		if exercise.RestSec == 0 {
			t.Errorf("%s has no rest prescription", exercise.Name)
		}
	}

	plank := routine.Exercises[3]
	if plank.DurationSec == nil || plank.Reps != nil {
		t.Errorf("plank should be time-based, got %+v", plank)
	}

	// The routine must be readable back from storage.
	stored, err := f.service.Get(context.Background(), routine.ID)
	if err != nil {
		t.Fatalf("get stored routine: %v", err)
	}
	if len(stored.Exercises) != 4 {
		t.Errorf("stored routine has %d exercises, want 4", len(stored.Exercises))
	}
}

func TestGenerateFallsBackOnGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{
			name:    "model returns prose",
			backend: &fakeBackend{responses: []chatMessage{{role: roleAssistant, content: "I'd rather chat about the weather."}}},
		},
		{
			name:    "model errors",
			backend: &fakeBackend{err: errors.New("rate limited")},
		},
		{
			name:    "model returns empty routine",
			backend: &fakeBackend{responses: []chatMessage{modelAnswer(`{"exercises":[]}`)}},
		},
		{
			name:    "no model configured",
			backend: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newServiceFixture(t, tt.backend)

			routine, err := f.service.Generate(context.Background(), GenerateRequest{
				UserID:   f.userID,
				Strategy: StrategyCreative,
			})
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if len(routine.Exercises) != 3 {
				t.Fatalf("fallback has %d exercises, want exactly 3", len(routine.Exercises))
			}
			if routine.Creative {
				t.Error("fallback routine must not be marked creative")
			}
			names := []string{routine.Exercises[0].Name, routine.Exercises[1].Name, routine.Exercises[2].Name}
			want := []string{"Push-Up", "Bodyweight Squat", "Plank"}
			for i := range want {
				if names[i] != want[i] {
					t.Errorf("fallback exercise %d is %q, want %q", i+1, names[i], want[i])
				}
			}
			if routine.Exercises[2].DurationSec == nil {
				t.Error("fallback plank should be time-based")
			}
		})
	}
}

func TestGenerateCatalogStrategySkipsModel(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{err: errors.New("must not be called")}
	f := newServiceFixture(t, backend)

	// Catalog is the default strategy and never touches the model.
	routine, err := f.service.Generate(context.Background(), GenerateRequest{UserID: f.userID})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(backend.toolCalls) != 0 {
		t.Fatalf("catalog strategy invoked the model %d times", len(backend.toolCalls))
	}
	if routine.Creative {
		t.Error("catalog routine must not be marked creative")
	}
	if len(routine.Exercises) < 3 {
		t.Fatalf("catalog routine has %d exercises, want today's full program", len(routine.Exercises))
	}
	for _, exercise := range routine.Exercises {
		if exercise.ExerciseID == 0 {
			t.Errorf("%s was not resolved to a stored exercise", exercise.Name)
		}
		if exercise.RestSec == 0 {
			t.Errorf("%s has no rest prescription", exercise.Name)
		}
	}
}

func TestGenerateCatalogPreservesFillToTotal(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, nil)
	ctx := context.Background()

	// Beginner week 4 Friday carries the 100-rep push-up test. The
	// profile was created just now, so three weeks out lands in the
	// cycle's final week.
	date := time.Now().AddDate(0, 0, 21)
	for date.Weekday() != time.Friday {
		date = date.AddDate(0, 0, 1)
	}

	routine, err := f.service.Generate(ctx, GenerateRequest{UserID: f.userID, Date: date})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	assertFillToTotal := func(label string, exercises []RoutineExercise) {
		t.Helper()
		for _, exercise := range exercises {
			if exercise.Sets == nil && exercise.DurationSec == nil {
				if exercise.Reps == nil || *exercise.Reps < 100 {
					t.Errorf("%s: fill-to-total entry %s lost its total rep target: %+v",
						label, exercise.Name, exercise)
				}
				return
			}
		}
		t.Errorf("%s: no fill-to-total entry survived, got %+v", label, exercises)
	}
	assertFillToTotal("generated", routine.Exercises)

	stored, err := f.service.Get(ctx, routine.ID)
	if err != nil {
		t.Fatalf("get stored routine: %v", err)
	}
	assertFillToTotal("stored", stored.Exercises)
}

func TestGenerateAppliesConditionScaling(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{responses: []chatMessage{modelAnswer(`{
		"exercises": [{"name": "Push-Up", "sets": 3, "reps": 10}]
	}`)}}
	f := newServiceFixture(t, backend)

	routine, err := f.service.Generate(context.Background(), GenerateRequest{
		UserID:   f.userID,
		Strategy: StrategyCreative,
		Condition: &progression.ConditionInput{
			Sleep:      1,
			Fatigue:    5,
			Stress:     5,
			Soreness:   5,
			Motivation: 1,
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if routine.ConditionScore != 1.0 {
		t.Fatalf("worst condition scored %.2f, want 1.0", routine.ConditionScore)
	}

	pushUp := routine.Exercises[0]
	if pushUp.Sets == nil || *pushUp.Sets != 2 {
		t.Errorf("poor condition should scale 3 sets to 2, got %v", pushUp.Sets)
	}
	if !strings.Contains(pushUp.WeightHint, "0.80") {
		t.Errorf("weight hint lacks intensity scaling: %q", pushUp.WeightHint)
	}
}

func TestGenerateCreativePersistsInventedExercise(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{responses: []chatMessage{modelAnswer(`{
		"exercises": [
			{"name": "Archer Push-Up", "target_muscle": "chest", "sets": 3, "reps": 6},
			{"name": "Push-Up", "sets": 3, "reps": 12},
			{"name": "Plank"}
		]
	}`)}}
	f := newServiceFixture(t, backend)

	routine, err := f.service.Generate(context.Background(), GenerateRequest{
		UserID:   f.userID,
		Strategy: StrategyCreative,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !routine.Creative {
		t.Error("creative generation lost its flag")
	}
	invented := routine.Exercises[0]
	if invented.ExerciseID == 0 {
		t.Error("invented exercise was not persisted")
	}

	// Regenerating resolves the invented exercise to the same row.
	backend.responses = append(backend.responses, modelAnswer(`{
		"exercises": [{"name": "archer push-up", "sets": 3, "reps": 6}]
	}`))
	again, err := f.service.Generate(context.Background(), GenerateRequest{
		UserID:   f.userID,
		Strategy: StrategyCreative,
	})
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if again.Exercises[0].ExerciseID != invented.ExerciseID {
		t.Errorf("invented exercise resolved to %d, want %d",
			again.Exercises[0].ExerciseID, invented.ExerciseID)
	}
}

func TestAgenticLoopExecutesToolsAndTerminates(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{responses: []chatMessage{
		{role: roleAssistant, toolCalls: []toolCall{{id: "call_1", name: "get_training_variables", arguments: "{}"}}},
		{role: roleAssistant, toolCalls: []toolCall{{id: "call_2", name: "get_exercise_pool", arguments: "{}"}}},
		modelAnswer(`{"exercises":[{"name":"Push-Up","sets":3,"reps":10}]}`),
	}}
	f := newServiceFixture(t, backend)

	routine, err := f.service.Generate(context.Background(), GenerateRequest{
		UserID:   f.userID,
		Strategy: StrategyAgentic,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if routine.Exercises[0].Name != "Push-Up" {
		t.Errorf("got %q from agentic run", routine.Exercises[0].Name)
	}
	if !routine.Creative {
		t.Error("model-generated agentic routine should be marked creative")
	}
	if len(backend.toolCalls) != 3 {
		t.Fatalf("backend called %d times, want 3", len(backend.toolCalls))
	}
	for i, count := range backend.toolCalls {
		if count == 0 {
			t.Errorf("call %d offered no tools", i+1)
		}
	}
}

func TestAgenticLoopBoundsAdversarialModel(t *testing.T) {
	t.Parallel()

	// A model that calls tools forever must be cut off after the
	// iteration budget and forced to answer without tools.
	var responses []chatMessage
	for i := 0; i < maxToolIterations; i++ {
		responses = append(responses, chatMessage{
			role:      roleAssistant,
			toolCalls: []toolCall{{id: fmt.Sprintf("call_%d", i), name: "get_exercise_pool", arguments: "{}"}},
		})
	}
	responses = append(responses, modelAnswer(`{"exercises":[{"name":"Push-Up"}]}`))
	backend := &fakeBackend{responses: responses}
	f := newServiceFixture(t, backend)

	routine, err := f.service.Generate(context.Background(), GenerateRequest{
		UserID:   f.userID,
		Strategy: StrategyAgentic,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(backend.toolCalls) != maxToolIterations+1 {
		t.Fatalf("backend called %d times, want %d", len(backend.toolCalls), maxToolIterations+1)
	}
	if final := backend.toolCalls[maxToolIterations]; final != 0 {
		t.Errorf("final forced call still offered %d tools", final)
	}
	if routine.Exercises[0].Name != "Push-Up" {
		t.Errorf("forced answer not used, got %q", routine.Exercises[0].Name)
	}
}

func TestToolboxUnknownFunction(t *testing.T) {
	t.Parallel()

	tb := &toolbox{}
	result := tb.execute(context.Background(), toolCall{name: "rm_rf", arguments: "{}"})
	if !strings.Contains(result, "unsupported function") {
		t.Errorf("got %q, want an unsupported function report", result)
	}
}

func TestRoutineEdits(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{responses: []chatMessage{modelAnswer(`{
		"exercises": [
			{"name": "Push-Up", "sets": 4, "reps": 12},
			{"name": "Bodyweight Squat", "sets": 3, "reps": 15}
		]
	}`)}}
	f := newServiceFixture(t, backend)
	ctx := context.Background()

	routine, err := f.service.Generate(ctx, GenerateRequest{UserID: f.userID, Strategy: StrategyCreative})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	replaced, err := f.service.ReplaceExercise(ctx, routine.ID, 1, "Incline Dumbbell Press")
	if err != nil {
		t.Fatalf("replace exercise: %v", err)
	}
	if replaced.Exercises[0].Name != "Incline Dumbbell Press" {
		t.Errorf("got %q at position 1", replaced.Exercises[0].Name)
	}
	if replaced.Exercises[0].Sets == nil || *replaced.Exercises[0].Sets != 4 {
		t.Errorf("replacement lost the slot's set prescription: %+v", replaced.Exercises[0])
	}

	added, err := f.service.AddExercise(ctx, routine.ID, "Plank")
	if err != nil {
		t.Fatalf("add exercise: %v", err)
	}
	if len(added.Exercises) != 3 {
		t.Fatalf("got %d exercises after add, want 3", len(added.Exercises))
	}
	last := added.Exercises[2]
	if last.Name != "Plank" || last.DurationSec == nil {
		t.Errorf("added plank is %+v, want a time-based plank", last)
	}

	removed, err := f.service.RemoveExercise(ctx, routine.ID, 2)
	if err != nil {
		t.Fatalf("remove exercise: %v", err)
	}
	if len(removed.Exercises) != 2 {
		t.Fatalf("got %d exercises after remove, want 2", len(removed.Exercises))
	}
	if removed.Exercises[1].Name != "Plank" {
		t.Errorf("wrong exercise removed, remaining: %q, %q",
			removed.Exercises[0].Name, removed.Exercises[1].Name)
	}

	if _, err = f.service.RemoveExercise(ctx, routine.ID, 99); err == nil {
		t.Error("expected out of range error")
	}
	if _, err = f.service.ReplaceExercise(ctx, "routine_missing", 1, "Plank"); err == nil {
		t.Error("expected missing routine error")
	}
}

func TestCompleteAndCount(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{responses: []chatMessage{
		modelAnswer(`{"exercises":[{"name":"Push-Up"}]}`),
		modelAnswer(`{"exercises":[{"name":"Plank"}]}`),
	}}
	f := newServiceFixture(t, backend)
	ctx := context.Background()

	first, err := f.service.Generate(ctx, GenerateRequest{UserID: f.userID})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := f.service.Generate(ctx, GenerateRequest{UserID: f.userID})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err = f.service.Complete(ctx, first.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err = f.service.Complete(ctx, first.ID); err == nil {
		t.Error("expected second completion to fail")
	}

	count, err := f.service.CompletedSince(ctx, f.userID, nil)
	if err != nil {
		t.Fatalf("count completed: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d completed routines, want 1", count)
	}

	got, err := f.service.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CompletedAt != nil {
		t.Error("uncompleted routine has a completion timestamp")
	}
}

func TestGenerateMissingProfile(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, nil)
	if _, err := f.service.Generate(context.Background(), GenerateRequest{UserID: 404}); err == nil {
		t.Error("expected error for missing profile")
	}
}

func TestWeeksSince(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		date time.Time
		want int
	}{
		{date: start, want: 0},
		{date: start.AddDate(0, 0, 6), want: 0},
		{date: start.AddDate(0, 0, 7), want: 1},
		{date: start.AddDate(0, 0, 29), want: 4},
		{date: start.AddDate(0, 0, -7), want: 0},
	}
	for _, tt := range tests {
		if got := weeksSince(start, tt.date); got != tt.want {
			t.Errorf("weeksSince(%s) = %d, want %d", tt.date.Format(time.DateOnly), got, tt.want)
		}
	}
}
