// Package app assembles the storage, embedder, retrieval and answer
// components into one service shared by the CLI, HTTP and MCP entry points.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/eventsage/internal/answer"
	"github.com/dshills/eventsage/internal/config"
	"github.com/dshills/eventsage/internal/embedder"
	"github.com/dshills/eventsage/internal/indexer"
	"github.com/dshills/eventsage/internal/pipeline"
	"github.com/dshills/eventsage/internal/ranker"
	"github.com/dshills/eventsage/internal/router"
	"github.com/dshills/eventsage/internal/storage"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// Service owns every long-lived component. Close releases them.
type Service struct {
	Config    *config.Config
	Storage   *storage.SQLiteStorage
	Embedder  embedder.Embedder
	Ranker    *ranker.Ranker
	Router    *router.Router
	Indexer   *indexer.Indexer
	Pipeline  *pipeline.Pipeline
	Generator answer.Generator

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*options)

type options struct {
	logger         logger.Logger
	embedder       embedder.Embedder
	generator      answer.Generator
	skipDimensions bool
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e embedder.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithGenerator replaces the configured answer generator.
func WithGenerator(g answer.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithoutDimensionCheck skips the startup dimension guard. Only reembed,
// which exists to repair a mismatch, should use it.
func WithoutDimensionCheck() Option {
	return func(o *options) { o.skipDimensions = true }
}

// New constructs the service. The embedding model is loaded eagerly so a
// broken model or a dimension mismatch fails here instead of on the first
// question; both are reported as types.ErrConfiguration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Service, err error) {
	o := &options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}

	s := &Service{Config: cfg, logger: o.logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Storage, err = storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s.Embedder = o.embedder
	if s.Embedder == nil {
		svc, err := embedder.New(embedder.Config{
			Provider:        cfg.EmbeddingProvider,
			Model:           cfg.EmbeddingModel,
			Dimension:       cfg.EmbeddingDim,
			BaseURL:         cfg.EmbeddingBaseURL,
			APIKey:          cfg.EmbeddingAPIKey,
			ONNXModelPath:   cfg.ONNXModelPath,
			ONNXVocabPath:   cfg.ONNXVocabPath,
			ONNXLibraryPath: cfg.ONNXLibraryPath,
			CacheSize:       cfg.EmbeddingCacheSize,
			CacheDir:        cfg.EmbeddingCacheDir,
			Timeout:         cfg.EmbeddingTimeout,
			Logger:          o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
		s.Embedder = svc
	}
	if w, ok := s.Embedder.(interface{ Warmup(context.Context) error }); ok {
		if err := w.Warmup(ctx); err != nil {
			return nil, fmt.Errorf("%w: embedder warmup: %w", types.ErrConfiguration, err)
		}
	}

	s.Ranker = ranker.New(s.Storage, s.Embedder, cfg.Weights(), o.logger)
	s.Router, err = router.New(s.Storage, s.Ranker, router.Options{
		Limit:     cfg.DefaultLimit,
		CacheSize: cfg.QueryCacheSize,
		CacheTTL:  cfg.QueryCacheTTL,
		Logger:    o.logger,
	})
	if err != nil {
		return nil, err
	}
	s.Indexer = indexer.New(s.Storage, s.Embedder, &indexer.Config{
		Workers:  cfg.IndexWorkers,
		Logger:   o.logger,
		OnChange: s.Router.Invalidate,
	})
	if !o.skipDimensions {
		if err := s.Indexer.CheckDimension(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
	}

	s.Generator = o.generator
	if s.Generator == nil {
		s.Generator, err = answer.New(answer.Config{
			Provider: cfg.LLMProvider,
			Model:    cfg.LLMModel,
			BaseURL:  cfg.LLMBaseURL,
			APIKey:   cfg.LLMAPIKey,
			Options: answer.LLMOptions{
				Timeout: cfg.LLMTimeout,
				RPS:     cfg.LLMRPS,
				Logger:  o.logger,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
		}
	}
	s.Pipeline = pipeline.New(s.Router, s.Generator, o.logger)

	s.logger.Info(ctx, "service ready",
		logger.String("db", cfg.DBPath),
		logger.String("embedder", s.Embedder.Provider()+"/"+s.Embedder.Model()),
		logger.Int("dimension", s.Embedder.Dimension()),
		logger.String("answer", s.Generator.Provider()))
	return s, nil
}

// Ask answers a question
func (s *Service) Ask(ctx context.Context, question string) (*pipeline.Answer, error) {
	return s.Pipeline.Ask(ctx, question)
}

// Search retrieves events for a question without generating an answer
func (s *Service) Search(ctx context.Context, question string) (*router.Result, error) {
	return s.Pipeline.Search(ctx, question)
}

// AddInput indexes one event
func (s *Service) AddInput(ctx context.Context, in indexer.EventInput) (*types.Event, error) {
	return s.Indexer.AddInput(ctx, in)
}

// Ping checks the database
func (s *Service) Ping(ctx context.Context) error {
	return s.Storage.Ping(ctx)
}

// Status describes the index and the active providers
type Status struct {
	Index             *storage.Status
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingDim      int
	AnswerProvider    string
}

// Status reports index statistics and provider information
func (s *Service) Status(ctx context.Context) (*Status, error) {
	idx, err := s.Storage.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Index:             idx,
		EmbeddingProvider: s.Embedder.Provider(),
		EmbeddingModel:    s.Embedder.Model(),
		EmbeddingDim:      s.Embedder.Dimension(),
		AnswerProvider:    s.Generator.Provider(),
	}, nil
}

// Close releases the embedder and the database
func (s *Service) Close() error {
	var errs []error
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.Storage != nil {
		errs = append(errs, s.Storage.Close())
	}
	return errors.Join(errs...)
}
