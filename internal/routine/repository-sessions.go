package routine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/repstack/trainer/internal/sqlite"
)

const (
	timestampFormat = "2006-01-02T15:04:05.000Z"
	dateFormat      = time.DateOnly
)

// ErrRoutineNotFound is returned when no routine exists for an ID.
var ErrRoutineNotFound = errors.New("routine not found")

// sqliteSessionRepository stores generated routines and their exercises.
type sqliteSessionRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newSQLiteSessionRepository(db *sqlite.Database, logger *slog.Logger) *sqliteSessionRepository {
	return &sqliteSessionRepository{db: db, logger: logger}
}

// Save persists a routine and its exercises in one transaction.
func (r *sqliteSessionRepository) Save(ctx context.Context, routine Routine) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO routines (id, user_id, date, level, creative, condition_score, duration_min)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			level = excluded.level,
			creative = excluded.creative,
			condition_score = excluded.condition_score,
			duration_min = excluded.duration_min`,
		routine.ID,
		routine.UserID,
		routine.Date.Format(dateFormat),
		routine.Level,
		routine.Creative,
		routine.ConditionScore,
		routine.DurationMin,
	)
	if err != nil {
		return fmt.Errorf("insert routine: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM routine_exercises WHERE routine_id = ?`, routine.ID); err != nil {
		return fmt.Errorf("clear routine exercises: %w", err)
	}
	for i, exercise := range routine.Exercises {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO routine_exercises (
				routine_id, position, exercise_id, name, target_muscle,
				sets, reps, duration_sec, rest_sec, weight_hint, instructions
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			routine.ID,
			i+1,
			exercise.ExerciseID,
			exercise.Name,
			exercise.TargetMuscle,
			exercise.Sets,
			exercise.Reps,
			exercise.DurationSec,
			exercise.RestSec,
			exercise.WeightHint,
			joinInstructions(exercise),
		)
		if err != nil {
			return fmt.Errorf("insert routine exercise %d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// joinInstructions folds coaching tips into the stored instruction text.
func joinInstructions(exercise RoutineExercise) string {
	text := exercise.Instructions
	for _, tip := range exercise.Tips {
		if text != "" {
			text += "\n"
		}
		text += "Tip: " + tip
	}
	return text
}

// Get retrieves a routine with its exercises.
func (r *sqliteSessionRepository) Get(ctx context.Context, id string) (Routine, error) {
	var (
		routine     Routine
		dateStr     string
		completedAt sql.NullString
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, date, level, creative, condition_score, duration_min, completed_at
		FROM routines
		WHERE id = ?`, id).Scan(
		&routine.ID,
		&routine.UserID,
		&dateStr,
		&routine.Level,
		&routine.Creative,
		&routine.ConditionScore,
		&routine.DurationMin,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Routine{}, ErrRoutineNotFound
	}
	if err != nil {
		return Routine{}, fmt.Errorf("query routine: %w", err)
	}

	if routine.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return Routine{}, fmt.Errorf("parse routine date: %w", err)
	}
	if completedAt.Valid {
		t, parseErr := time.Parse(timestampFormat, completedAt.String)
		if parseErr != nil {
			return Routine{}, fmt.Errorf("parse completed_at: %w", parseErr)
		}
		routine.CompletedAt = &t
	}

	if routine.Exercises, err = r.listExercises(ctx, id); err != nil {
		return Routine{}, err
	}
	return routine, nil
}

func (r *sqliteSessionRepository) listExercises(ctx context.Context, routineID string) (_ []RoutineExercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT exercise_id, name, target_muscle, sets, reps, duration_sec, rest_sec, weight_hint, instructions
		FROM routine_exercises
		WHERE routine_id = ?
		ORDER BY position`, routineID)
	if err != nil {
		return nil, fmt.Errorf("query routine exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var exercises []RoutineExercise
	for rows.Next() {
		var exercise RoutineExercise
		if err = rows.Scan(
			&exercise.ExerciseID,
			&exercise.Name,
			&exercise.TargetMuscle,
			&exercise.Sets,
			&exercise.Reps,
			&exercise.DurationSec,
			&exercise.RestSec,
			&exercise.WeightHint,
			&exercise.Instructions,
		); err != nil {
			return nil, fmt.Errorf("scan routine exercise: %w", err)
		}
		exercises = append(exercises, exercise)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}

// Complete marks a routine as completed.
func (r *sqliteSessionRepository) Complete(ctx context.Context, id string) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE routines
		SET completed_at = ?
		WHERE id = ? AND completed_at IS NULL`,
		time.Now().UTC().Format(timestampFormat), id)
	if err != nil {
		return fmt.Errorf("complete routine: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("already completed or %w", ErrRoutineNotFound)
	}
	return nil
}

// CompletedSince counts completed routines for a user, optionally only
// those completed after since.
func (r *sqliteSessionRepository) CompletedSince(ctx context.Context, userID int64, since *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM routines WHERE user_id = ? AND completed_at IS NOT NULL`
	args := []any{userID}
	if since != nil {
		query += ` AND completed_at > ?`
		args = append(args, since.UTC().Format(timestampFormat))
	}
	var count int
	if err := r.db.ReadOnly.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count completed routines: %w", err)
	}
	return count, nil
}

// RecentExerciseNames returns the names of exercises served to the user
// on or after since, used to vary pool ordering.
func (r *sqliteSessionRepository) RecentExerciseNames(ctx context.Context, userID int64, since time.Time) (_ map[string]bool, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT DISTINCT re.name
		FROM routine_exercises re
		JOIN routines ro ON ro.id = re.routine_id
		WHERE ro.user_id = ? AND ro.date >= ?`,
		userID, since.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("query recent exercise names: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	names := map[string]bool{}
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan exercise name: %w", err)
		}
		names[name] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}
