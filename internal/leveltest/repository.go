package leveltest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/repstack/trainer/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// Attempt is one recorded level test attempt.
type Attempt struct {
	TargetLevel int       `json:"target_level"`
	Passed      bool      `json:"passed"`
	Feedback    string    `json:"feedback,omitempty"`
	TakenAt     time.Time `json:"taken_at"`
}

// sqliteResultRepository stores level test attempts.
type sqliteResultRepository struct {
	db *sqlite.Database
}

func newSQLiteResultRepository(db *sqlite.Database) *sqliteResultRepository {
	return &sqliteResultRepository{db: db}
}

func (r *sqliteResultRepository) Save(ctx context.Context, userID int64, targetLevel int, passed bool, feedback string) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO level_tests (user_id, target_level, passed, feedback)
		VALUES (?, ?, ?, ?)`,
		userID, targetLevel, passed, feedback)
	if err != nil {
		return fmt.Errorf("insert level test: %w", err)
	}
	return nil
}

// History returns the user's attempts, most recent first.
func (r *sqliteResultRepository) History(ctx context.Context, userID int64) (_ []Attempt, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT target_level, passed, feedback, taken_at
		FROM level_tests
		WHERE user_id = ?
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query level tests: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var attempts []Attempt
	for rows.Next() {
		var (
			attempt Attempt
			takenAt string
		)
		if err = rows.Scan(&attempt.TargetLevel, &attempt.Passed, &attempt.Feedback, &takenAt); err != nil {
			return nil, fmt.Errorf("scan level test: %w", err)
		}
		if attempt.TakenAt, err = time.Parse(timestampFormat, takenAt); err != nil {
			// The column default writes fractional seconds in the same
			// shape, RFC 3339 covers hand-inserted rows.
			if attempt.TakenAt, err = time.Parse(time.RFC3339, takenAt); err != nil {
				return nil, fmt.Errorf("parse taken_at: %w", err)
			}
		}
		attempts = append(attempts, attempt)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return attempts, nil
}

// History exposes the user's recorded attempts.
func (s *Service) History(ctx context.Context, userID int64) ([]Attempt, error) {
	attempts, err := s.results.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("level test history: %w", err)
	}
	return attempts, nil
}
