package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// DefaultTimeout bounds a single embed call
const DefaultTimeout = 30 * time.Second

// Options configures a Service
type Options struct {
	Cache   *Cache        // in-memory LRU; nil disables
	Disk    *DiskCache    // persistent cache; nil disables
	Timeout time.Duration // per call; 0 = DefaultTimeout
	Logger  logger.Logger
}

// Service decorates a provider with the two cache tiers and a per-call
// timeout. An expired timeout is reported as a retryable error.
type Service struct {
	inner   Embedder
	cache   *Cache
	disk    *DiskCache
	timeout time.Duration
	log     logger.Logger
}

var _ Embedder = (*Service)(nil)

// NewService wraps inner
func NewService(inner Embedder, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Service{
		inner:   inner,
		cache:   opts.Cache,
		disk:    opts.Disk,
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
}

// Warmup loads the underlying model when it is loaded lazily
func (s *Service) Warmup(ctx context.Context) error {
	if w, ok := s.inner.(interface{ Warmup(context.Context) error }); ok {
		return w.Warmup(ctx)
	}
	return nil
}

func (s *Service) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if emb, ok := s.lookup(ctx, req.Text); ok {
		return emb, nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	emb, err := bounded(tctx, func(ctx context.Context) (*Embedding, error) {
		return s.inner.GenerateEmbedding(ctx, req)
	})
	if err != nil {
		return nil, s.classify(ctx, tctx, err)
	}
	s.store(ctx, req.Text, emb)
	return emb, nil
}

func (s *Service) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	out := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if emb, ok := s.lookup(ctx, text); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += MaxBatchSize {
		idx := missing[start:min(start+MaxBatchSize, len(missing))]
		texts := make([]string, len(idx))
		for j, i := range idx {
			texts[j] = req.Texts[i]
		}

		resp, err := s.generateChunk(ctx, texts)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			out[i] = resp.Embeddings[j]
			s.store(ctx, texts[j], resp.Embeddings[j])
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   s.inner.Provider(),
		Model:      s.inner.Model(),
	}, nil
}

func (s *Service) generateChunk(ctx context.Context, texts []string) (*BatchEmbeddingResponse, error) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := bounded(tctx, func(ctx context.Context) (*BatchEmbeddingResponse, error) {
		return s.inner.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts})
	})
	if err != nil {
		return nil, s.classify(ctx, tctx, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(resp.Embeddings), len(texts))
	}
	return resp, nil
}

// bounded returns when call does or when ctx ends, whichever is first.
// Local inference does not watch ctx; an abandoned call finishes on its own
// goroutine and its result is dropped.
func bounded[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// classify turns an expiry of our own deadline into a retryable error
func (s *Service) classify(parent, tctx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: embedding timed out after %s: %v", types.ErrRetryable, s.timeout, err)
	}
	return err
}

func (s *Service) lookup(ctx context.Context, text string) (*Embedding, bool) {
	hash := ComputeHash(text)
	if s.cache != nil {
		if emb, ok := s.cache.Get(hash); ok {
			return emb, true
		}
	}
	if s.disk == nil {
		return nil, false
	}

	vec, ok, err := s.disk.Get(DiskKey(s.inner.Model(), text))
	if err != nil {
		s.log.Warn(ctx, "embedding cache read failed", logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	emb := &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  s.inner.Provider(),
		Model:     s.inner.Model(),
		Hash:      hash,
	}
	if s.cache != nil {
		s.cache.Set(hash, emb)
	}
	return emb, true
}

func (s *Service) store(ctx context.Context, text string, emb *Embedding) {
	hash := ComputeHash(text)
	emb.Hash = hash
	if s.cache != nil {
		s.cache.Set(hash, emb)
	}
	if s.disk != nil {
		if err := s.disk.Set(DiskKey(s.inner.Model(), text), emb.Vector); err != nil {
			s.log.Warn(ctx, "embedding cache write failed", logger.Error(err))
		}
	}
}

// Dimension returns the provider dimension
func (s *Service) Dimension() int {
	return s.inner.Dimension()
}

func (s *Service) Provider() string {
	return s.inner.Provider()
}

func (s *Service) Model() string {
	return s.inner.Model()
}

// Close releases the provider and the persistent cache
func (s *Service) Close() error {
	var errs []error
	if err := s.inner.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.disk != nil {
		if err := s.disk.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
