package ranker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventsage/internal/embedder"
	"github.com/dshills/eventsage/internal/storage"
	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	generateFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	vec := []float32{1, 0, 0}
	if m.generateFunc != nil {
		var err error
		if vec, err = m.generateFunc(ctx, req.Text); err != nil {
			return nil, err
		}
	}
	return &embedder.Embedding{Vector: vec, Dimension: len(vec), Model: "mock-model", Provider: "mock"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "mock", Model: "mock-model"}, nil
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func setupTestRanker(t *testing.T, emb embedder.Embedder) (*Ranker, storage.Storage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, emb, DefaultWeights(), logger.Nop()), store
}

func addEvent(t *testing.T, store storage.Storage, name, text, day string, emb []float32) *types.Event {
	t.Helper()
	d, err := types.ParseDate(day)
	require.NoError(t, err)

	ev := &types.Event{
		Name:        name,
		Domain:      "tech",
		Date:        d,
		Description: text,
		SearchText:  textmatch.Normalize(text),
		Embedding:   emb,
	}
	ev.ApplyDefaults()
	require.NoError(t, store.InsertEvent(context.Background(), ev, "mock-model"))
	return ev
}

func TestRankIdenticalTextFirst(t *testing.T) {
	r, store := setupTestRanker(t, &mockEmbedder{})
	ctx := context.Background()

	// orthogonal to the query vector so lexical similarity decides
	away := []float32{0, 1, 0}
	addEvent(t, store, "Series", "ai summit workshop series", "2025-03-01", away)
	addEvent(t, store, "Summit", "ai summit", "2025-01-01", away)
	addEvent(t, store, "Robots", "robotics lab", "2025-05-01", away)

	results, err := r.Rank(ctx, Request{Query: "AI Summit"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	top := results[0]
	assert.Equal(t, "Summit", top.Event.Name)
	assert.InDelta(t, 1.0, top.LexicalSimilarity, 1e-9)
	assert.True(t, top.HasVector)
	assert.InDelta(t, 0.0, top.VectorSimilarity, 1e-6)
	assert.InDelta(t, DefaultLexicalWeight, top.FinalScore, 1e-6)

	assert.Equal(t, "Series", results[1].Event.Name)
	assert.True(t, results[1].Contained)
	assert.Less(t, results[1].FinalScore, top.FinalScore)
}

func TestRankLimit(t *testing.T) {
	r, store := setupTestRanker(t, &mockEmbedder{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		addEvent(t, store, fmt.Sprintf("Robotics %d", i),
			fmt.Sprintf("robotics meetup %d", i), fmt.Sprintf("2025-0%d-01", i+1),
			[]float32{1, float32(i) * 0.1, 0})
	}

	all, err := r.Rank(ctx, Request{Query: "robotics meetup"})
	require.NoError(t, err)
	require.Len(t, all, 5)

	top2, err := r.Rank(ctx, Request{Query: "robotics meetup", Limit: 2})
	require.NoError(t, err)
	require.Len(t, top2, 2)
	assert.Equal(t, all[0].Event.ID, top2[0].Event.ID)
	assert.Equal(t, all[1].Event.ID, top2[1].Event.ID)

	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].FinalScore, all[i].FinalScore)
	}
}

func TestRankEmbeddingFailureDegradesToLexical(t *testing.T) {
	emb := &mockEmbedder{
		generateFunc: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("provider down")
		},
	}
	r, store := setupTestRanker(t, emb)
	ctx := context.Background()

	addEvent(t, store, "Summit", "ai summit", "2025-01-01", []float32{1, 0, 0})
	addEvent(t, store, "Vector Only", "unrelated words", "2025-01-02", []float32{1, 0, 0})

	results, err := r.Rank(ctx, Request{Query: "ai summit"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Summit", results[0].Event.Name)
	assert.False(t, results[0].HasVector)
	assert.Zero(t, results[0].VectorSimilarity)
	assert.InDelta(t, DefaultLexicalWeight, results[0].FinalScore, 1e-6)
}

func TestRankCanceledContext(t *testing.T) {
	emb := &mockEmbedder{
		generateFunc: func(ctx context.Context, _ string) ([]float32, error) {
			return nil, ctx.Err()
		},
	}
	r, _ := setupTestRanker(t, emb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Rank(ctx, Request{Query: "ai summit"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankAppliesFilter(t *testing.T) {
	r, store := setupTestRanker(t, &mockEmbedder{})
	ctx := context.Background()

	addEvent(t, store, "March Summit", "ai summit", "2025-03-31", []float32{1, 0, 0})
	addEvent(t, store, "April Summit", "ai summit", "2025-04-01", []float32{1, 0, 0})

	results, err := r.Rank(ctx, Request{
		Query:  "ai summit",
		Filter: &storage.EventFilter{Date: types.MonthRange(2025, 3)},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "March Summit", results[0].Event.Name)
	assert.Greater(t, results[0].FinalScore, 0.0)
}

func TestRankEmptyQuery(t *testing.T) {
	r, _ := setupTestRanker(t, &mockEmbedder{})
	results, err := r.Rank(context.Background(), Request{Query: "   "})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNearest(t *testing.T) {
	r, store := setupTestRanker(t, &mockEmbedder{})
	ctx := context.Background()

	addEvent(t, store, "Close", "alpha", "2025-01-01", []float32{1, 0.1, 0})
	addEvent(t, store, "Far", "beta", "2025-01-02", []float32{0, 0, 1})
	addEvent(t, store, "Exact", "gamma", "2025-01-03", []float32{2, 0, 0})

	results, err := r.Nearest(ctx, "anything", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Exact", results[0].Event.Name)
	assert.Equal(t, "Close", results[1].Event.Name)
	assert.InDelta(t, 1.0, results[0].FinalScore, 1e-6)

	failing := New(store, &mockEmbedder{
		generateFunc: func(context.Context, string) ([]float32, error) { return nil, errors.New("down") },
	}, DefaultWeights(), nil)
	_, err = failing.Nearest(ctx, "anything", 2)
	assert.Error(t, err)
}

func TestQueryEmbeddingKeepsRepeatedLetters(t *testing.T) {
	var seen []string
	emb := &mockEmbedder{
		generateFunc: func(_ context.Context, text string) ([]float32, error) {
			seen = append(seen, text)
			return []float32{1, 0, 0}, nil
		},
	}
	r, store := setupTestRanker(t, emb)
	ctx := context.Background()
	addEvent(t, store, "Coffee Meetup", "free coffee meetup at the summit", "2025-01-01", []float32{1, 0, 0})

	results, err := r.Rank(ctx, Request{Query: "  Free Coffee   Meetup at the SUMMIT"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Coffee Meetup", results[0].Event.Name)

	_, err = r.Nearest(ctx, "Free coffee", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"free coffee meetup at the summit", "free coffee"}, seen)
}

func TestScore(t *testing.T) {
	ev := &types.Event{ID: 1, Name: "x"}
	w := DefaultWeights()

	dist := 0.25
	re := Score(storage.Candidate{Event: ev, Lexical: 0.5, Distance: &dist}, w)
	assert.InDelta(t, 0.75, re.VectorSimilarity, 1e-9)
	assert.InDelta(t, 0.4*0.75+0.6*0.5, re.FinalScore, 1e-9)

	far := 1.8
	re = Score(storage.Candidate{Event: ev, Lexical: 0.2, Distance: &far}, w)
	assert.Zero(t, re.VectorSimilarity)
	assert.InDelta(t, 0.6*0.2, re.FinalScore, 1e-9)

	re = Score(storage.Candidate{Event: ev, Lexical: 0.2}, w)
	assert.False(t, re.HasVector)
	assert.InDelta(t, 0.12, re.FinalScore, 1e-9)
}

func TestSortRankedTieBreak(t *testing.T) {
	day := func(s string) time.Time {
		d, _ := types.ParseDate(s)
		return d
	}
	results := []types.RankedEvent{
		{Event: types.Event{ID: 3, Date: day("2025-01-01")}, FinalScore: 0.5},
		{Event: types.Event{ID: 2, Date: day("2025-06-01")}, FinalScore: 0.5},
		{Event: types.Event{ID: 1, Date: day("2025-06-01")}, FinalScore: 0.5},
		{Event: types.Event{ID: 4, Date: day("2020-01-01")}, FinalScore: 0.9},
	}
	sortRanked(results)

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.Event.ID
	}
	assert.Equal(t, []int64{4, 1, 2, 3}, ids)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.Vector = 0.5
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)

	w = Weights{Vector: 0.3 + 1e-7, Lexical: 0.7, LexicalThreshold: 0.3, VectorThreshold: 0.5}
	assert.NoError(t, w.Validate())

	w = DefaultWeights()
	w.VectorThreshold = 3
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)

	w = Weights{Vector: -0.5, Lexical: 1.5}
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)
}
