// Package profile stores trainee profiles: body metrics, fitness goal,
// current progression level and level-test bookkeeping.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/repstack/trainer/internal/progression"
	"github.com/repstack/trainer/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// ErrNotFound is returned when no profile exists for a user.
var ErrNotFound = errors.New("profile not found")

// Profile is one trainee's stored state.
type Profile struct {
	UserID      int64
	DisplayName string
	HeightCM    float64
	WeightKG    float64
	FitnessGoal string
	Level       int
	LastTestAt  *time.Time
	CreatedAt   time.Time
}

// Store persists profiles in SQLite.
type Store struct {
	db *sqlite.Database
}

// NewStore creates a profile store.
func NewStore(db *sqlite.Database) *Store {
	return &Store{db: db}
}

// Get retrieves a profile by user ID.
func (s *Store) Get(ctx context.Context, userID int64) (Profile, error) {
	var (
		p         Profile
		lastTest  sql.NullString
		createdAt string
	)
	err := s.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, display_name, height_cm, weight_kg, fitness_goal, current_level, last_test_at, created_at
		FROM users
		WHERE id = ?`, userID).Scan(
		&p.UserID,
		&p.DisplayName,
		&p.HeightCM,
		&p.WeightKG,
		&p.FitnessGoal,
		&p.Level,
		&lastTest,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}

	p.Level = progression.Clamp(p.Level)
	if lastTest.Valid {
		t, err := parseTimestamp(lastTest.String)
		if err != nil {
			return Profile{}, fmt.Errorf("parse last_test_at: %w", err)
		}
		p.LastTestAt = &t
	}
	created, err := parseTimestamp(createdAt)
	if err != nil {
		return Profile{}, fmt.Errorf("parse created_at: %w", err)
	}
	p.CreatedAt = created
	return p, nil
}

// Create inserts a profile and returns it with the assigned user ID.
func (s *Store) Create(ctx context.Context, p Profile) (Profile, error) {
	p.Level = progression.Clamp(p.Level)
	result, err := s.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO users (display_name, height_cm, weight_kg, fitness_goal, current_level)
		VALUES (?, ?, ?, ?, ?)`,
		p.DisplayName, p.HeightCM, p.WeightKG, p.FitnessGoal, p.Level)
	if err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Profile{}, fmt.Errorf("get last insert ID: %w", err)
	}
	return s.Get(ctx, id)
}

// UpdateGoal replaces the user's fitness goal.
func (s *Store) UpdateGoal(ctx context.Context, userID int64, goal string) error {
	result, err := s.db.ReadWrite.ExecContext(ctx, `
		UPDATE users SET fitness_goal = ? WHERE id = ?`, goal, userID)
	if err != nil {
		return fmt.Errorf("update fitness goal: %w", err)
	}
	return requireRow(result)
}

// UpdateLevel sets the user's current level, clamped to the valid range.
func (s *Store) UpdateLevel(ctx context.Context, userID int64, level int) error {
	result, err := s.db.ReadWrite.ExecContext(ctx, `
		UPDATE users SET current_level = ? WHERE id = ?`, progression.Clamp(level), userID)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return requireRow(result)
}

// SetLastTestAt records when the user last took a level test.
func (s *Store) SetLastTestAt(ctx context.Context, userID int64, at time.Time) error {
	result, err := s.db.ReadWrite.ExecContext(ctx, `
		UPDATE users SET last_test_at = ? WHERE id = ?`,
		at.UTC().Format(timestampFormat), userID)
	if err != nil {
		return fmt.Errorf("update last_test_at: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err == nil {
		return t, nil
	}
	// SQLite's strftime default uses the same layout without the
	// trailing zero padding guarantee, fall back to RFC 3339.
	t, rfcErr := time.Parse(time.RFC3339, s)
	if rfcErr != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
