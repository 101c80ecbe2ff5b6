package routine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/repstack/trainer/internal/catalog"
	"github.com/repstack/trainer/internal/knowledge"
	"github.com/repstack/trainer/internal/profile"
	"github.com/repstack/trainer/internal/progression"
	"github.com/repstack/trainer/internal/sqlite"
)

const defaultDurationMin = 45

// Service handles routine generation and post-generation edits.
type Service struct {
	logger    *slog.Logger
	profiles  *profile.Store
	catalog   *catalog.Catalog
	retriever *knowledge.Retriever
	exercises *sqliteExerciseRepository
	sessions  *sqliteSessionRepository
	generator *generator
	now       func() time.Time
}

// NewService creates a routine service. An empty API key disables the
// language model, every generation then takes the deterministic path.
func NewService(
	db *sqlite.Database,
	logger *slog.Logger,
	cat *catalog.Catalog,
	retriever *knowledge.Retriever,
	profiles *profile.Store,
	openaiAPIKey string,
) *Service {
	var backend textBackend
	if openaiAPIKey != "" {
		backend = newOpenAIBackend(openaiAPIKey, logger)
	}
	return newService(db, logger, cat, retriever, profiles, backend)
}

func newService(
	db *sqlite.Database,
	logger *slog.Logger,
	cat *catalog.Catalog,
	retriever *knowledge.Retriever,
	profiles *profile.Store,
	backend textBackend,
) *Service {
	exercises := newSQLiteExerciseRepository(db)
	return &Service{
		logger:    logger,
		profiles:  profiles,
		catalog:   cat,
		retriever: retriever,
		exercises: exercises,
		sessions:  newSQLiteSessionRepository(db, logger),
		generator: &generator{
			backend:   backend,
			exercises: exercises,
			retriever: retriever,
			logger:    logger,
		},
		now: time.Now,
	}
}

// GenerateRequest describes one routine generation.
type GenerateRequest struct {
	UserID int64
	// Date of the session. Zero means today.
	Date time.Time
	// Condition is the morning check-in. Nil scores as neutral.
	Condition *progression.ConditionInput
	// Strategy defaults to StrategyCatalog.
	Strategy Strategy
	// Equipment limits database pool entries to the listed equipment.
	Equipment []string
	// DurationMin is the requested session length. Zero means the
	// default.
	DurationMin int
}

// Generate produces a routine for the user. The catalog strategy serves
// today's program workout without touching the model. For the creative
// and agentic strategies the model proposes and local rules dispose:
// exercises are resolved against stored data, condition scaling is
// applied locally, and the deterministic fallback serves when the model
// fails. Generate only fails when the profile is missing.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (Routine, error) {
	prof, err := s.profiles.Get(ctx, req.UserID)
	if err != nil {
		return Routine{}, fmt.Errorf("load profile: %w", err)
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyCatalog
	}
	durationMin := req.DurationMin
	if durationMin <= 0 {
		durationMin = defaultDurationMin
	}

	var condition progression.ConditionInput
	if req.Condition != nil {
		condition = *req.Condition
	}
	score := progression.Score(condition)
	band := progression.BandFor(score)
	tier := progression.TierFor(prof.Level)

	pc := s.buildContext(ctx, prof, tier, band, score, date, req, durationMin, strategy)

	var (
		exercises []RoutineExercise
		parsed    llmRoutine
		creative  bool
	)
	if strategy == StrategyCatalog {
		exercises = s.generator.catalogRoutine(pc)
	} else {
		var proposeErr error
		parsed, proposeErr = s.generator.propose(ctx, pc, strategy)
		if proposeErr == nil {
			exercises = s.generator.resolveExercises(ctx, parsed, pc)
		} else if !errors.Is(proposeErr, errNoBackend) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "model generation failed, using fallback",
				slog.Int64("user_id", req.UserID), slog.Any("error", proposeErr))
		}
		// Creative marks model-generated routines, whatever the strategy.
		creative = len(exercises) > 0
	}
	if len(exercises) == 0 {
		exercises = s.generator.fallbackRoutine(ctx, pc)
		creative = false
		parsed = llmRoutine{}
	}

	applyCondition(exercises, band)
	s.generator.enrich(ctx, req.UserID, prof.Level, exercises)

	routine := Routine{
		ID:             newRoutineID(prof.Level, date, s.now()),
		UserID:         req.UserID,
		Date:           date,
		Level:          prof.Level,
		Creative:       creative,
		ConditionScore: score,
		DurationMin:    durationMin,
		Notes:          parsed.Notes,
		Exercises:      exercises,
	}
	if parsed.DurationMin > 0 {
		routine.DurationMin = parsed.DurationMin
	}

	// Persistence is best effort, an unsaved routine is still served.
	if err := s.sessions.Save(ctx, routine); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "save routine",
			slog.String("routine_id", routine.ID), slog.Any("error", err))
	}
	return routine, nil
}

// buildContext gathers everything the prompt and the tools need. Every
// piece degrades gracefully, context building never fails.
func (s *Service) buildContext(
	ctx context.Context,
	prof profile.Profile,
	tier progression.Tier,
	band progression.Band,
	score float64,
	date time.Time,
	req GenerateRequest,
	durationMin int,
	strategy Strategy,
) promptContext {
	muscles := catalog.ExtractMuscles(prof.FitnessGoal)
	workout, haveWorkout := s.catalog.WorkoutFor(tier, weeksSince(prof.CreatedAt, date), date.Weekday())

	focus := muscles[0]
	if haveWorkout && workout.Focus != "" {
		focus = workout.Focus
	}

	recent, err := s.sessions.RecentExerciseNames(ctx, req.UserID, date.AddDate(0, 0, -14))
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "list recent exercises",
			slog.Int64("user_id", req.UserID), slog.Any("error", err))
	}

	pool, err := buildPool(ctx, s.exercises, poolRequest{
		tier:        tier,
		muscles:     muscles,
		workout:     workout,
		equipment:   req.Equipment,
		recentNames: recent,
	})
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "build exercise pool",
			slog.Int64("user_id", req.UserID), slog.Any("error", err))
	}

	var chunks []knowledge.Chunk
	if s.retriever != nil {
		chunks = s.retriever.Search(ctx, knowledge.Query{
			Type:   knowledge.TypeRoutineDesign,
			Text:   strings.TrimSpace(prof.FitnessGoal + " " + focus),
			Level:  prof.Level,
			Limit:  3,
			UserID: req.UserID,
		})
	}

	return promptContext{
		profile:     prof,
		tier:        tier,
		band:        band,
		score:       score,
		pool:        pool,
		focus:       focus,
		durationMin: durationMin,
		creative:    strategy == StrategyCreative,
		chunks:      chunks,
	}
}

// Get retrieves a stored routine.
func (s *Service) Get(ctx context.Context, id string) (Routine, error) {
	routine, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Routine{}, fmt.Errorf("get routine: %w", err)
	}
	return routine, nil
}

// Complete marks a routine as done.
func (s *Service) Complete(ctx context.Context, id string) error {
	if err := s.sessions.Complete(ctx, id); err != nil {
		return fmt.Errorf("complete routine: %w", err)
	}
	return nil
}

// CompletedSince counts the user's completed routines, optionally only
// after since. Level tests use it to gate eligibility.
func (s *Service) CompletedSince(ctx context.Context, userID int64, since *time.Time) (int, error) {
	count, err := s.sessions.CompletedSince(ctx, userID, since)
	if err != nil {
		return 0, fmt.Errorf("count completed routines: %w", err)
	}
	return count, nil
}

// ReplaceExercise swaps the exercise at position (1-based) for the named
// one, keeping the slot's prescription where the replacement has none of
// its own.
func (s *Service) ReplaceExercise(ctx context.Context, routineID string, position int, name string) (Routine, error) {
	routine, err := s.sessions.Get(ctx, routineID)
	if err != nil {
		return Routine{}, fmt.Errorf("get routine: %w", err)
	}
	if position < 1 || position > len(routine.Exercises) {
		return Routine{}, fmt.Errorf("position %d out of range 1..%d", position, len(routine.Exercises))
	}

	replacement, err := s.exerciseForEdit(ctx, name)
	if err != nil {
		return Routine{}, err
	}
	old := routine.Exercises[position-1]
	replacement.Sets = old.Sets
	replacement.Reps = old.Reps
	replacement.RestSec = old.RestSec
	applyDefaults(&replacement, defaultRestSec(progression.TierFor(routine.Level)))
	routine.Exercises[position-1] = replacement

	if err = s.sessions.Save(ctx, routine); err != nil {
		return Routine{}, fmt.Errorf("save routine: %w", err)
	}
	return s.sessions.Get(ctx, routineID)
}

// AddExercise appends the named exercise to a routine.
func (s *Service) AddExercise(ctx context.Context, routineID string, name string) (Routine, error) {
	routine, err := s.sessions.Get(ctx, routineID)
	if err != nil {
		return Routine{}, fmt.Errorf("get routine: %w", err)
	}
	if len(routine.Exercises) >= maxRoutineExercises {
		return Routine{}, fmt.Errorf("routine already holds %d exercises", len(routine.Exercises))
	}

	added, err := s.exerciseForEdit(ctx, name)
	if err != nil {
		return Routine{}, err
	}
	applyDefaults(&added, defaultRestSec(progression.TierFor(routine.Level)))
	routine.Exercises = append(routine.Exercises, added)

	if err = s.sessions.Save(ctx, routine); err != nil {
		return Routine{}, fmt.Errorf("save routine: %w", err)
	}
	return s.sessions.Get(ctx, routineID)
}

// RemoveExercise deletes the exercise at position (1-based). A routine
// keeps at least one exercise.
func (s *Service) RemoveExercise(ctx context.Context, routineID string, position int) (Routine, error) {
	routine, err := s.sessions.Get(ctx, routineID)
	if err != nil {
		return Routine{}, fmt.Errorf("get routine: %w", err)
	}
	if position < 1 || position > len(routine.Exercises) {
		return Routine{}, fmt.Errorf("position %d out of range 1..%d", position, len(routine.Exercises))
	}
	if len(routine.Exercises) == 1 {
		return Routine{}, errors.New("cannot remove the last exercise")
	}
	routine.Exercises = append(routine.Exercises[:position-1], routine.Exercises[position:]...)

	if err = s.sessions.Save(ctx, routine); err != nil {
		return Routine{}, fmt.Errorf("save routine: %w", err)
	}
	return s.sessions.Get(ctx, routineID)
}

// exerciseForEdit resolves a user-supplied exercise name for routine
// edits, creating the exercise when it is unknown.
func (s *Service) exerciseForEdit(ctx context.Context, name string) (RoutineExercise, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoutineExercise{}, errors.New("exercise name is empty")
	}
	stored, found, err := s.exercises.FindByName(ctx, name)
	if err != nil {
		return RoutineExercise{}, fmt.Errorf("find exercise: %w", err)
	}
	if !found {
		stored, err = s.exercises.Create(ctx, Exercise{
			Name:         name,
			TargetMuscle: catalog.DefaultFocus,
			Difficulty:   1,
		})
		if err != nil {
			return RoutineExercise{}, fmt.Errorf("create exercise: %w", err)
		}
	}
	return RoutineExercise{
		ExerciseID:   stored.ID,
		Name:         stored.Name,
		TargetMuscle: stored.TargetMuscle,
	}, nil
}

// weeksSince returns how many whole weeks have passed from start to
// date, never negative.
func weeksSince(start, date time.Time) int {
	weeks := int(date.Sub(start).Hours() / (24 * 7))
	if weeks < 0 {
		return 0
	}
	return weeks
}

// newRoutineID builds a readable, unique routine identifier.
func newRoutineID(level int, date, now time.Time) string {
	return fmt.Sprintf("routine_l%d_%s_%d_%s",
		level,
		date.Format("20060102"),
		now.Unix(),
		uuid.NewString()[:8])
}
