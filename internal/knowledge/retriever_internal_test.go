package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/repstack/trainer/internal/testhelpers"
)

type fakeChunkSource struct {
	chunks []Chunk
	err    error
}

func (f *fakeChunkSource) List(_ context.Context, t KnowledgeType, muscle string, level int) ([]Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Chunk
	for _, chunk := range f.chunks {
		if chunk.Type != t {
			continue
		}
		if muscle != "" && chunk.MuscleGroup != muscle {
			continue
		}
		if level > 0 && (chunk.MinLevel > level || chunk.MaxLevel < level) {
			continue
		}
		out = append(out, chunk)
	}
	return out, nil
}

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func chunkIDs(chunks []Chunk) []int64 {
	ids := make([]int64, 0, len(chunks))
	for _, chunk := range chunks {
		ids = append(ids, chunk.ID)
	}
	return ids
}

func TestSearchSemanticRanksBySimilarity(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeRoutineDesign, Content: "push pull legs split", Embedding: []float64{1, 0}},
		{ID: 2, Type: TypeRoutineDesign, Content: "full body routines", Embedding: []float64{0, 1}},
		{ID: 3, Type: TypeRoutineDesign, Content: "upper lower split", Embedding: []float64{0.9, 0.1}},
	}}
	embedder := &fakeEmbedder{vectors: map[string][]float64{"split routine": {1, 0}}}
	r := newRetriever(source, embedder, nil, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	got := r.Search(context.Background(), Query{Type: TypeRoutineDesign, Text: "split routine", Limit: 2})
	if diff := cmp.Diff([]int64{1, 3}, chunkIDs(got)); diff != "" {
		t.Errorf("semantic ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchFallsBackToKeywordWithoutEmbedder(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeFormCheck, Content: "keep the bar over midfoot during the squat"},
		{ID: 2, Type: TypeFormCheck, Content: "elbow position in the bench press"},
		{ID: 3, Type: TypeFormCheck, Content: "squat depth and knee tracking", Summary: "squat form"},
	}}
	r := newRetriever(source, nil, nil, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	got := r.Search(context.Background(), Query{Type: TypeFormCheck, Text: "squat form"})
	if diff := cmp.Diff([]int64{3, 1}, chunkIDs(got)); diff != "" {
		t.Errorf("keyword ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchFallsBackToKeywordWhenEmbeddingFails(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeFormCheck, Content: "deadlift lockout cues", Embedding: []float64{1, 0}},
	}}
	embedder := &fakeEmbedder{err: errors.New("api down")}
	r := newRetriever(source, embedder, nil, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	got := r.Search(context.Background(), Query{Type: TypeFormCheck, Text: "deadlift lockout"})
	if diff := cmp.Diff([]int64{1}, chunkIDs(got)); diff != "" {
		t.Errorf("expected keyword fallback result (-want +got):\n%s", diff)
	}
}

func TestSearchMuscleLookupWhenNothingMatches(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeExerciseTechnique, Content: "row cues", MuscleGroup: "back"},
		{ID: 2, Type: TypeExerciseTechnique, Content: "press cues", MuscleGroup: "chest"},
	}}
	r := newRetriever(source, nil, nil, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	// Gibberish text matches no keywords, the muscle lookup still serves.
	got := r.Search(context.Background(), Query{Type: TypeExerciseTechnique, Text: "xq", Muscle: "chest"})
	if len(got) == 0 {
		t.Fatal("expected muscle lookup to return chunks")
	}
	if got[0].ID != 2 {
		t.Errorf("got chunk %d first, want chest chunk 2", got[0].ID)
	}
}

func TestSearchRetriesWithoutMuscleFilter(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeExerciseTechnique, Content: "squat bracing", MuscleGroup: "legs"},
	}}
	r := newRetriever(source, nil, nil, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	got := r.Search(context.Background(), Query{Type: TypeExerciseTechnique, Text: "squat bracing", Muscle: "calves"})
	if diff := cmp.Diff([]int64{1}, chunkIDs(got)); diff != "" {
		t.Errorf("expected retry without muscle filter (-want +got):\n%s", diff)
	}
}

func TestSearchNeverFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query Query
		src   *fakeChunkSource
	}{
		{
			name:  "storage error",
			query: Query{Type: TypeRoutineDesign, Text: "splits"},
			src:   &fakeChunkSource{err: errors.New("disk gone")},
		},
		{
			name:  "unknown type",
			query: Query{Type: KnowledgeType("astrology")},
			src:   &fakeChunkSource{},
		},
		{
			name:  "empty knowledge base",
			query: Query{Type: TypeNutritionRecovery, Text: "protein"},
			src:   &fakeChunkSource{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newRetriever(tt.src, nil, nil, testhelpers.NewLogger(testhelpers.NewWriter(t)))
			if got := r.Search(context.Background(), tt.query); len(got) != 0 {
				t.Errorf("expected empty result, got %d chunks", len(got))
			}
		})
	}
}

func TestSearchLevelFilter(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeRoutineDesign, Content: "linear progression basics", MinLevel: 1, MaxLevel: 3},
		{ID: 2, Type: TypeRoutineDesign, Content: "advanced periodization blocks", MinLevel: 6, MaxLevel: 8},
	}}
	r := newRetriever(source, nil, nil, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	got := r.Search(context.Background(), Query{Type: TypeRoutineDesign, Text: "progression periodization", Level: 2})
	if diff := cmp.Diff([]int64{1}, chunkIDs(got)); diff != "" {
		t.Errorf("level filter mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchDemotesRecentlyServedChunks(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeFormCheck, Content: "squat depth"},
		{ID: 2, Type: TypeFormCheck, Content: "squat bracing"},
	}}
	novelty := NewMemoryNoveltyStore()
	r := newRetriever(source, nil, novelty, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	first := r.Search(context.Background(), Query{Type: TypeFormCheck, Text: "squat", Limit: 1, UserID: 7})
	if diff := cmp.Diff([]int64{1}, chunkIDs(first)); diff != "" {
		t.Fatalf("first search mismatch (-want +got):\n%s", diff)
	}

	second := r.Search(context.Background(), Query{Type: TypeFormCheck, Text: "squat", Limit: 1, UserID: 7})
	if diff := cmp.Diff([]int64{2}, chunkIDs(second)); diff != "" {
		t.Errorf("expected unseen chunk to rank first (-want +got):\n%s", diff)
	}

	// A different user sees the original ranking.
	other := r.Search(context.Background(), Query{Type: TypeFormCheck, Text: "squat", Limit: 1, UserID: 8})
	if diff := cmp.Diff([]int64{1}, chunkIDs(other)); diff != "" {
		t.Errorf("novelty leaked across users (-want +got):\n%s", diff)
	}
}

func TestSearchExcludesRecentFromSemanticTier(t *testing.T) {
	t.Parallel()

	source := &fakeChunkSource{chunks: []Chunk{
		{ID: 1, Type: TypeRoutineDesign, Content: "push pull legs split", Embedding: []float64{1, 0}},
		{ID: 2, Type: TypeRoutineDesign, Content: "upper lower split", Embedding: []float64{0.9, 0.1}},
	}}
	embedder := &fakeEmbedder{vectors: map[string][]float64{"split routine": {1, 0}}}
	novelty := NewMemoryNoveltyStore()
	r := newRetriever(source, embedder, novelty, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	first := r.Search(context.Background(), Query{Type: TypeRoutineDesign, Text: "split routine", Limit: 1, UserID: 7})
	if diff := cmp.Diff([]int64{1}, chunkIDs(first)); diff != "" {
		t.Fatalf("first search mismatch (-want +got):\n%s", diff)
	}

	// The best semantic match was just served, so it must not come back
	// while the novelty window holds it.
	second := r.Search(context.Background(), Query{Type: TypeRoutineDesign, Text: "split routine", Limit: 1, UserID: 7})
	if diff := cmp.Diff([]int64{2}, chunkIDs(second)); diff != "" {
		t.Errorf("recently served chunk returned again (-want +got):\n%s", diff)
	}

	// With every embedded candidate excluded, the keyword tier serves as
	// the fallback rather than returning nothing.
	third := r.Search(context.Background(), Query{Type: TypeRoutineDesign, Text: "split routine", Limit: 2, UserID: 7})
	if len(third) == 0 {
		t.Error("search returned nothing once all candidates were recently served")
	}
}

func TestMemoryNoveltyStoreExpiresAndCaps(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &memoryNoveltyStore{served: map[int64][]servedChunk{}, now: func() time.Time { return now }}
	ctx := context.Background()

	ids := make([]int64, 0, noveltyCap+10)
	for i := int64(1); i <= noveltyCap+10; i++ {
		ids = append(ids, i)
	}
	if err := store.Remember(ctx, 1, ids); err != nil {
		t.Fatalf("remember: %v", err)
	}

	recent, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != noveltyCap {
		t.Errorf("got %d entries, want cap %d", len(recent), noveltyCap)
	}
	if recent[0] != noveltyCap+10 {
		t.Errorf("got most recent entry %d, want %d", recent[0], noveltyCap+10)
	}

	now = now.Add(noveltyTTL + time.Minute)
	recent, err = store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent after expiry: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("got %d entries after expiry, want 0", len(recent))
	}
}

func TestChunkMatchesExercise(t *testing.T) {
	t.Parallel()

	chunk := Chunk{ExerciseName: "Back Squat,Goblet Squat"}
	if !chunk.MatchesExercise("back squat") {
		t.Error("expected case-insensitive match on first list entry")
	}
	if !chunk.MatchesExercise(" Goblet Squat ") {
		t.Error("expected match ignoring surrounding spaces")
	}
	if chunk.MatchesExercise("Front Squat") {
		t.Error("unexpected match for an unlisted exercise")
	}
	if (Chunk{}).MatchesExercise("Back Squat") {
		t.Error("empty exercise list should match nothing")
	}
}
