package knowledge

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/repstack/trainer/internal/sqlite"
)

// DefaultLimit is how many chunks a search returns unless the query
// asks for a different count.
const DefaultLimit = 5

// Query describes one knowledge search.
type Query struct {
	// Type selects the knowledge partition to search. Required.
	Type KnowledgeType
	// Text is the free-text query used for semantic and keyword
	// matching.
	Text string
	// Muscle narrows technique searches to one muscle group and drives
	// the last-resort lookup. Optional.
	Muscle string
	// Level filters chunks to those applicable at the user's level.
	// Zero disables the filter.
	Level int
	// Limit caps the result size. Zero means DefaultLimit.
	Limit int
	// UserID enables novelty tracking when a novelty store is
	// configured. Zero disables it.
	UserID int64
}

// chunkSource abstracts the chunk storage for tests.
type chunkSource interface {
	List(ctx context.Context, t KnowledgeType, muscle string, level int) ([]Chunk, error)
}

// Retriever searches the knowledge base. A retrieval failure is never
// fatal: every error path logs and yields an empty result so callers can
// proceed without knowledge.
type Retriever struct {
	chunks   chunkSource
	embedder Embedder
	novelty  NoveltyStore
	logger   *slog.Logger
}

// NewRetriever creates a knowledge retriever on the SQLite database.
// The embedder and novelty store are optional, pass nil to disable
// semantic search or novelty tracking.
func NewRetriever(db *sqlite.Database, embedder Embedder, novelty NoveltyStore, logger *slog.Logger) *Retriever {
	return newRetriever(newSQLiteChunkRepository(db), embedder, novelty, logger)
}

func newRetriever(chunks chunkSource, embedder Embedder, novelty NoveltyStore, logger *slog.Logger) *Retriever {
	return &Retriever{
		chunks:   chunks,
		embedder: embedder,
		novelty:  novelty,
		logger:   logger,
	}
}

// Search returns up to Limit chunks for the query, best match first.
// Matching tries semantic similarity, then keyword overlap, then a plain
// muscle-group lookup. When novelty tracking is on, chunks served within
// the novelty window are excluded from semantic matches entirely and
// rank after unseen ones in the lower tiers.
func (r *Retriever) Search(ctx context.Context, q Query) []Chunk {
	if !q.Type.Valid() {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "knowledge search with unknown type",
			slog.String("type", string(q.Type)))
		return nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	muscle := ""
	if q.Type == TypeExerciseTechnique {
		muscle = q.Muscle
	}
	candidates, err := r.chunks.List(ctx, q.Type, muscle, q.Level)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "list knowledge chunks",
			slog.String("type", string(q.Type)), slog.Any("error", err))
		return nil
	}
	if len(candidates) == 0 && muscle != "" {
		// The muscle filter can be too narrow, retry without it.
		candidates, err = r.chunks.List(ctx, q.Type, "", q.Level)
		if err != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "list knowledge chunks",
				slog.String("type", string(q.Type)), slog.Any("error", err))
			return nil
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	seen := r.recentChunkIDs(ctx, q.UserID)

	ranked := r.rankSemantic(ctx, q.Text, candidates, seen)
	if ranked == nil {
		ranked = rankKeyword(q.Text, candidates)
	}
	if ranked == nil {
		ranked = rankMuscle(q.Muscle, candidates)
	}

	ranked = demoteSeen(ranked, seen)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	r.rememberServed(ctx, q.UserID, ranked)
	return ranked
}

// rankSemantic orders candidates by cosine similarity to the embedded
// query text. Chunks in the seen set are excluded outright. It returns
// nil when semantic search is unavailable or everything is excluded so
// the caller can fall through to keyword matching.
func (r *Retriever) rankSemantic(ctx context.Context, text string, candidates []Chunk, seen map[int64]bool) []Chunk {
	if r.embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	queryVec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "embed knowledge query, falling back to keyword search",
			slog.Any("error", err))
		return nil
	}

	type scored struct {
		chunk Chunk
		score float64
	}
	var matches []scored
	for _, chunk := range candidates {
		if len(chunk.Embedding) == 0 || seen[chunk.ID] {
			continue
		}
		matches = append(matches, scored{chunk: chunk, score: cosineSimilarity(queryVec, chunk.Embedding)})
	}
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].chunk.ID < matches[j].chunk.ID
	})
	ranked := make([]Chunk, 0, len(matches))
	for _, match := range matches {
		ranked = append(ranked, match.chunk)
	}
	return ranked
}

// rankKeyword orders candidates by how many distinct query tokens appear
// in their content or summary. Tokens shorter than two characters are
// ignored. Returns nil when nothing matches.
func rankKeyword(text string, candidates []Chunk) []Chunk {
	tokens := queryTokens(text)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		chunk Chunk
		score int
	}
	var matches []scored
	for _, chunk := range candidates {
		haystack := strings.ToLower(chunk.Content + " " + chunk.Summary + " " + chunk.ExerciseName)
		score := 0
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{chunk: chunk, score: score})
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].chunk.ID < matches[j].chunk.ID
	})
	ranked := make([]Chunk, 0, len(matches))
	for _, match := range matches {
		ranked = append(ranked, match.chunk)
	}
	return ranked
}

// rankMuscle is the last-resort ranking: chunks for the requested muscle
// group first, then the rest, both in ID order.
func rankMuscle(muscle string, candidates []Chunk) []Chunk {
	if muscle == "" {
		return candidates
	}
	ranked := make([]Chunk, 0, len(candidates))
	var rest []Chunk
	for _, chunk := range candidates {
		if strings.EqualFold(chunk.MuscleGroup, muscle) {
			ranked = append(ranked, chunk)
		} else {
			rest = append(rest, chunk)
		}
	}
	return append(ranked, rest...)
}

// recentChunkIDs returns the chunks served to the user within the
// novelty window, nil when tracking is off or the store fails.
func (r *Retriever) recentChunkIDs(ctx context.Context, userID int64) map[int64]bool {
	if r.novelty == nil || userID == 0 {
		return nil
	}
	recent, err := r.novelty.Recent(ctx, userID)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "read novelty entries",
			slog.Int64("user_id", userID), slog.Any("error", err))
		return nil
	}
	if len(recent) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(recent))
	for _, id := range recent {
		seen[id] = true
	}
	return seen
}

// demoteSeen moves recently served chunks behind unseen ones without
// disturbing relative order.
func demoteSeen(ranked []Chunk, seen map[int64]bool) []Chunk {
	if len(seen) == 0 || len(ranked) == 0 {
		return ranked
	}
	fresh := make([]Chunk, 0, len(ranked))
	var stale []Chunk
	for _, chunk := range ranked {
		if seen[chunk.ID] {
			stale = append(stale, chunk)
		} else {
			fresh = append(fresh, chunk)
		}
	}
	return append(fresh, stale...)
}

func (r *Retriever) rememberServed(ctx context.Context, userID int64, served []Chunk) {
	if r.novelty == nil || userID == 0 || len(served) == 0 {
		return
	}
	ids := make([]int64, 0, len(served))
	for _, chunk := range served {
		ids = append(ids, chunk.ID)
	}
	if err := r.novelty.Remember(ctx, userID, ids); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "record novelty entries",
			slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// queryTokens lowercases and splits text, dropping one-character tokens.
func queryTokens(text string) []string {
	var tokens []string
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?:;()\"'")
		if len(token) >= 2 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
