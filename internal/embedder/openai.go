package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/eventsage/internal/retry"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint
type OpenAIConfig struct {
	BaseURL   string // empty = api.openai.com
	APIKey    string
	Model     string
	Dimension int
}

// OpenAIProvider implements Embedder through langchaingo against any
// OpenAI-compatible embeddings API.
type OpenAIProvider struct {
	embedder embeddings.Embedder
	model    string
	dim      int
	retry    retry.Config
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: embedding API key not set", ErrNoProviderEnabled)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = OpenAIDimension
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(DefaultBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder: emb,
		model:    cfg.Model,
		dim:      cfg.Dimension,
		retry:    retry.Default(),
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	vec, err := retry.Do(ctx, o.retry, func() ([]float32, error) {
		return o.embedder.EmbedQuery(ctx, req.Text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, o.retry.MaxRetries, err)
	}
	if err := checkDimension(vec, o.dim); err != nil {
		return nil, err
	}

	return &Embedding{
		Vector:    vec,
		Dimension: len(vec),
		Provider:  ProviderOpenAI,
		Model:     o.model,
		Hash:      ComputeHash(req.Text),
	}, nil
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	vecs, err := retry.Do(ctx, o.retry, func() ([][]float32, error) {
		return o.embedder.EmbedDocuments(ctx, req.Texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, o.retry.MaxRetries, err)
	}
	if len(vecs) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vecs), len(req.Texts))
	}

	out := make([]*Embedding, len(vecs))
	for i, vec := range vecs {
		if err := checkDimension(vec, o.dim); err != nil {
			return nil, err
		}
		out[i] = &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  ProviderOpenAI,
			Model:     o.model,
			Hash:      ComputeHash(req.Texts[i]),
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   ProviderOpenAI,
		Model:      o.model,
	}, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dim
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
