package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/repstack/trainer/internal/sqlite"
)

// sqliteChunkRepository implements chunkSource on the SQLite database.
// Embeddings are stored as JSON float arrays in a TEXT column.
type sqliteChunkRepository struct {
	db *sqlite.Database
}

func newSQLiteChunkRepository(db *sqlite.Database) *sqliteChunkRepository {
	return &sqliteChunkRepository{db: db}
}

// List returns chunks of the given type whose level range includes level.
// A level of 0 skips the level filter, an empty muscle skips the muscle
// filter.
func (r *sqliteChunkRepository) List(ctx context.Context, t KnowledgeType, muscle string, level int) (_ []Chunk, err error) {
	query := `
		SELECT id, knowledge_type, content, summary, exercise_name,
		       muscle_group, min_level, max_level, embedding, source_title, source_url
		FROM knowledge_chunks
		WHERE knowledge_type = ?`
	args := []any{string(t)}
	if muscle != "" {
		query += ` AND muscle_group = ?`
		args = append(args, muscle)
	}
	if level > 0 {
		query += ` AND min_level <= ? AND max_level >= ?`
		args = append(args, level, level)
	}
	query += ` ORDER BY id`

	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query knowledge chunks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var chunks []Chunk
	for rows.Next() {
		var (
			chunk     Chunk
			embedding *string
		)
		if err = rows.Scan(
			&chunk.ID,
			&chunk.Type,
			&chunk.Content,
			&chunk.Summary,
			&chunk.ExerciseName,
			&chunk.MuscleGroup,
			&chunk.MinLevel,
			&chunk.MaxLevel,
			&embedding,
			&chunk.SourceTitle,
			&chunk.SourceURL,
		); err != nil {
			return nil, fmt.Errorf("scan knowledge chunk: %w", err)
		}
		if embedding != nil && *embedding != "" {
			if err = json.Unmarshal([]byte(*embedding), &chunk.Embedding); err != nil {
				return nil, fmt.Errorf("unmarshal embedding for chunk %d: %w", chunk.ID, err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}

// Save inserts a chunk and returns it with the assigned ID.
func (r *sqliteChunkRepository) Save(ctx context.Context, chunk Chunk) (Chunk, error) {
	var embedding *string
	if len(chunk.Embedding) > 0 {
		data, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return chunk, fmt.Errorf("marshal embedding: %w", err)
		}
		s := string(data)
		embedding = &s
	}

	result, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO knowledge_chunks (
			knowledge_type, content, summary, exercise_name,
			muscle_group, min_level, max_level, embedding, source_title, source_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(chunk.Type),
		chunk.Content,
		chunk.Summary,
		chunk.ExerciseName,
		chunk.MuscleGroup,
		chunk.MinLevel,
		chunk.MaxLevel,
		embedding,
		chunk.SourceTitle,
		chunk.SourceURL,
	)
	if err != nil {
		return chunk, fmt.Errorf("insert knowledge chunk: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return chunk, fmt.Errorf("get last insert ID: %w", err)
	}
	chunk.ID = id
	return chunk, nil
}
