package routine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/repstack/trainer/internal/sqlite"
)

// sqliteExerciseRepository stores exercise definitions.
type sqliteExerciseRepository struct {
	db *sqlite.Database
}

func newSQLiteExerciseRepository(db *sqlite.Database) *sqliteExerciseRepository {
	return &sqliteExerciseRepository{db: db}
}

const exerciseColumns = `id, name, target_muscle, equipment, difficulty, technique_notes, video_url`

func scanExercise(row interface{ Scan(...any) error }) (Exercise, error) {
	var ex Exercise
	err := row.Scan(
		&ex.ID,
		&ex.Name,
		&ex.TargetMuscle,
		&ex.Equipment,
		&ex.Difficulty,
		&ex.TechniqueNotes,
		&ex.VideoURL,
	)
	return ex, err
}

// Get retrieves an exercise by ID.
func (r *sqliteExerciseRepository) Get(ctx context.Context, id int64) (Exercise, error) {
	ex, err := scanExercise(r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercises
		WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Exercise{}, fmt.Errorf("exercise %d: %w", id, err)
	}
	if err != nil {
		return Exercise{}, fmt.Errorf("query exercise: %w", err)
	}
	return ex, nil
}

// FindByName retrieves an exercise by case-insensitive name match.
func (r *sqliteExerciseRepository) FindByName(ctx context.Context, name string) (Exercise, bool, error) {
	ex, err := scanExercise(r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercises
		WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return Exercise{}, false, nil
	}
	if err != nil {
		return Exercise{}, false, fmt.Errorf("query exercise by name: %w", err)
	}
	return ex, true, nil
}

// List returns exercises filtered by muscle groups and difficulty
// ceiling. Empty muscles or a zero ceiling disable the respective
// filter.
func (r *sqliteExerciseRepository) List(ctx context.Context, muscles []string, maxDifficulty int) (_ []Exercise, err error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises`
	var (
		clauses []string
		args    []any
	)
	if len(muscles) > 0 {
		placeholders := strings.Repeat("?, ", len(muscles))
		clauses = append(clauses, `target_muscle IN (`+placeholders[:len(placeholders)-2]+`)`)
		for _, muscle := range muscles {
			args = append(args, muscle)
		}
	}
	if maxDifficulty > 0 {
		clauses = append(clauses, `difficulty <= ?`)
		args = append(args, maxDifficulty)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY difficulty, name`

	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var exercises []Exercise
	for rows.Next() {
		ex, scanErr := scanExercise(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan exercise: %w", scanErr)
		}
		exercises = append(exercises, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}

// Create inserts an exercise, or returns the existing one when the name
// is already taken.
func (r *sqliteExerciseRepository) Create(ctx context.Context, ex Exercise) (Exercise, error) {
	if existing, found, err := r.FindByName(ctx, ex.Name); err != nil {
		return Exercise{}, err
	} else if found {
		return existing, nil
	}
	if ex.Difficulty < 1 {
		ex.Difficulty = 1
	}
	if ex.Equipment == "" {
		ex.Equipment = "bodyweight"
	}
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO exercises (name, target_muscle, equipment, difficulty, technique_notes, video_url)
		VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(ex.Name), ex.TargetMuscle, ex.Equipment, ex.Difficulty, ex.TechniqueNotes, ex.VideoURL)
	if err != nil {
		return Exercise{}, fmt.Errorf("insert exercise: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Exercise{}, fmt.Errorf("get last insert ID: %w", err)
	}
	ex.ID = id
	return ex, nil
}
