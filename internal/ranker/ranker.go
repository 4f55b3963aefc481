package ranker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/eventsage/internal/embedder"
	"github.com/dshills/eventsage/internal/metrics"
	"github.com/dshills/eventsage/internal/storage"
	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// Default blend used when no weights are configured
const (
	DefaultVectorWeight     = 0.4
	DefaultLexicalWeight    = 0.6
	DefaultLexicalThreshold = 0.3
	DefaultVectorThreshold  = 0.5 // cosine distance
)

// weightTolerance bounds how far VectorWeight+LexicalWeight may drift from 1
const weightTolerance = 1e-6

// ErrInvalidWeights is returned by Weights.Validate
var ErrInvalidWeights = errors.New("invalid ranking weights")

// Weights controls candidate selection and the score blend
type Weights struct {
	Vector           float64
	Lexical          float64
	VectorThreshold  float64 // candidates need cosine distance below this
	LexicalThreshold float64 // or trigram similarity above this
}

// DefaultWeights returns the stock blend
func DefaultWeights() Weights {
	return Weights{
		Vector:           DefaultVectorWeight,
		Lexical:          DefaultLexicalWeight,
		VectorThreshold:  DefaultVectorThreshold,
		LexicalThreshold: DefaultLexicalThreshold,
	}
}

// Validate checks the weights are non-negative and sum to 1
func (w Weights) Validate() error {
	if w.Vector < 0 || w.Lexical < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidWeights)
	}
	if math.Abs(w.Vector+w.Lexical-1) > weightTolerance {
		return fmt.Errorf("%w: vector (%g) + lexical (%g) must equal 1", ErrInvalidWeights, w.Vector, w.Lexical)
	}
	if w.LexicalThreshold < 0 || w.LexicalThreshold > 1 {
		return fmt.Errorf("%w: lexical threshold must be in [0,1]", ErrInvalidWeights)
	}
	if w.VectorThreshold < 0 || w.VectorThreshold > 2 {
		return fmt.Errorf("%w: vector threshold must be in [0,2]", ErrInvalidWeights)
	}
	return nil
}

// Request contains parameters for one ranking pass
type Request struct {
	Query   string
	Filter  *storage.EventFilter
	Weights *Weights // nil = ranker defaults
	Limit   int      // 0 = no limit
}

// Ranker blends vector and trigram similarity over store candidates
type Ranker struct {
	storage  storage.Storage
	embedder embedder.Embedder
	weights  Weights
	log      logger.Logger
}

// New creates a Ranker. A nil logger discards output.
func New(store storage.Storage, emb embedder.Embedder, weights Weights, log logger.Logger) *Ranker {
	if log == nil {
		log = logger.Nop()
	}
	return &Ranker{
		storage:  store,
		embedder: emb,
		weights:  weights,
		log:      log.Named("ranker"),
	}
}

// Weights returns the configured blend
func (r *Ranker) Weights() Weights {
	return r.weights
}

// Rank returns the filtered union of lexical, substring and vector
// candidates for req.Query, best first. A failed query embedding drops the
// vector term rather than failing the request.
func (r *Ranker) Rank(ctx context.Context, req Request) ([]types.RankedEvent, error) {
	w := r.weights
	if req.Weights != nil {
		w = *req.Weights
	}

	query := textmatch.Normalize(req.Query)
	if query == "" {
		return nil, nil
	}

	// lexical matching uses the collapsed form, the embedder the real words
	vec, err := embedder.Embed(ctx, r.embedder, textmatch.Fold(req.Query))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Warn(ctx, "query embedding failed, ranking lexically", logger.Error(err))
		metrics.RecordEmbeddingFailure(metrics.StageQuery)
		vec = nil
	}

	cands, err := r.storage.SearchHybrid(ctx, storage.HybridQuery{
		Filter:           req.Filter,
		Query:            query,
		Vector:           vec,
		LexicalThreshold: w.LexicalThreshold,
		VectorThreshold:  w.VectorThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	results := make([]types.RankedEvent, len(cands))
	for i, c := range cands {
		results[i] = Score(c, w)
	}
	sortRanked(results)
	return truncate(results, req.Limit), nil
}

// Nearest ranks events by vector similarity alone with no filter. Unlike
// Rank it fails when the query cannot be embedded.
func (r *Ranker) Nearest(ctx context.Context, query string, limit int) ([]types.RankedEvent, error) {
	query = textmatch.Fold(query)
	if query == "" {
		return nil, nil
	}

	vec, err := embedder.Embed(ctx, r.embedder, query)
	if err != nil {
		metrics.RecordEmbeddingFailure(metrics.StageFallback)
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	cands, err := r.storage.SearchVector(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]types.RankedEvent, len(cands))
	for i, c := range cands {
		results[i] = Score(c, Weights{Vector: 1})
	}
	sortRanked(results)
	return results, nil
}

// Score blends one candidate's signals:
//
//	final = w.Vector * clamp01(1 - distance) + w.Lexical * lexical
//
// Without a distance the vector term is 0.
func Score(c storage.Candidate, w Weights) types.RankedEvent {
	re := types.RankedEvent{
		LexicalSimilarity: c.Lexical,
		Contained:         c.Contained,
	}
	if c.Event != nil {
		re.Event = *c.Event
	}
	if c.Distance != nil {
		re.HasVector = true
		re.VectorSimilarity = clamp01(1 - *c.Distance)
	}
	re.FinalScore = w.Vector*re.VectorSimilarity + w.Lexical*re.LexicalSimilarity
	return re
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// sortRanked orders by final score descending, then date descending, then
// ID ascending
func sortRanked(results []types.RankedEvent) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if !a.Event.Date.Equal(b.Event.Date) {
			return a.Event.Date.After(b.Event.Date)
		}
		return a.Event.ID < b.Event.ID
	})
}

func truncate(results []types.RankedEvent, limit int) []types.RankedEvent {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
