// Package pipeline answers a natural-language question end to end:
// classify and route it, render the retrieved events as context, and hand
// question plus context to the answer generator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/eventsage/internal/answer"
	"github.com/dshills/eventsage/internal/formatter"
	"github.com/dshills/eventsage/internal/router"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// ErrEmptyQuestion is returned for a blank question
var ErrEmptyQuestion = errors.New("question is empty")

// Answer is the result of one question
type Answer struct {
	Question string
	Text     string
	Strategy router.Strategy
	Events   []types.RankedEvent
	Count    *int
	Context  string // what the generator saw; empty when nothing was found
	Provider string
	CacheHit bool
	Duration time.Duration
}

// Pipeline wires the router to an answer generator
type Pipeline struct {
	router    *router.Router
	generator answer.Generator
	log       logger.Logger
}

// New creates a Pipeline. A nil logger discards output.
func New(r *router.Router, gen answer.Generator, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		router:    r,
		generator: gen,
		log:       log.Named("pipeline"),
	}
}

// Search runs retrieval only
func (p *Pipeline) Search(ctx context.Context, question string) (*router.Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	return p.router.Route(ctx, question)
}

// Ask retrieves context for question and generates the answer. When no
// strategy finds anything the answer is answer.NoInformation and the
// generator is not called.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	res, err := p.Search(ctx, question)
	if err != nil {
		return nil, err
	}

	out := &Answer{
		Question: question,
		Strategy: res.Strategy,
		Events:   res.Events,
		Count:    res.Count,
		CacheHit: res.CacheHit,
	}
	if !res.Found() {
		out.Text = answer.NoInformation
		out.Duration = time.Since(start)
		return out, nil
	}

	out.Context = BuildContext(res)
	text, err := p.generator.Generate(ctx, question, out.Context)
	if err != nil {
		p.log.Error(ctx, "answer generation failed",
			logger.String("strategy", string(res.Strategy)),
			logger.String("provider", p.generator.Provider()),
			logger.Error(err))
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	out.Text = text
	out.Provider = p.generator.Provider()
	out.Duration = time.Since(start)
	p.log.Info(ctx, "question answered",
		logger.String("strategy", string(res.Strategy)),
		logger.Int("events", len(res.Events)),
		logger.Bool("cache_hit", res.CacheHit),
		logger.Duration("duration", out.Duration))
	return out, nil
}

// BuildContext renders a route result as generator context. Scores are
// shown only for the similarity strategies, where they carry meaning.
func BuildContext(res *router.Result) string {
	if res.Strategy == router.StrategyCount && res.Count != nil {
		return formatter.FormatCount(*res.Count, res.Classification.Year)
	}
	withScore := res.Strategy == router.StrategyHybrid || res.Strategy == router.StrategyVector
	return formatter.Format(res.Events, withScore)
}
