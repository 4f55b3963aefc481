package embedder

import (
	"context"
	"fmt"
	"sync"
)

// Loader constructs the underlying embedder, typically loading a model
type Loader func(ctx context.Context) (Embedder, error)

// Lazy defers construction of an embedder until first use. Concurrent first
// callers block on one load; afterwards the loaded embedder is shared
// read-only. A failed load is remembered and every later call returns an
// error wrapping ErrModelLoad.
type Lazy struct {
	loader   Loader
	provider string
	model    string

	mu      sync.Mutex
	loaded  bool
	inner   Embedder
	loadErr error
}

// NewLazy wraps loader. provider and model are reported before the load.
func NewLazy(provider, model string, loader Loader) *Lazy {
	return &Lazy{loader: loader, provider: provider, model: model}
}

func (l *Lazy) get(ctx context.Context) (Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		l.loaded = true
		inner, err := l.loader(ctx)
		if err != nil {
			l.loadErr = fmt.Errorf("%w: %v", ErrModelLoad, err)
		} else if inner == nil {
			l.loadErr = fmt.Errorf("%w: loader returned no embedder", ErrModelLoad)
		} else {
			l.inner = inner
		}
	}
	return l.inner, l.loadErr
}

// Warmup forces the load so configuration errors surface at startup
func (l *Lazy) Warmup(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

// Loaded reports whether a load has been attempted and succeeded
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner != nil
}

func (l *Lazy) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	inner, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return inner.GenerateEmbedding(ctx, req)
}

func (l *Lazy) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	inner, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return inner.GenerateBatch(ctx, req)
}

// Dimension triggers the load; it is 0 when the model could not be loaded
func (l *Lazy) Dimension() int {
	inner, err := l.get(context.Background())
	if err != nil {
		return 0
	}
	return inner.Dimension()
}

func (l *Lazy) Provider() string {
	return l.provider
}

func (l *Lazy) Model() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner != nil {
		return l.inner.Model()
	}
	return l.model
}

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inner == nil {
		return nil
	}
	err := l.inner.Close()
	l.inner = nil
	l.loadErr = fmt.Errorf("%w: embedder closed", ErrModelLoad)
	return err
}
