package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/dshills/eventsage/internal/vector"
)

// Provider configuration
const (
	ProviderONNX    = "onnx"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"

	// Default models
	DefaultONNXModel    = "BAAI/bge-base-en-v1.5"
	DefaultOpenAIModel  = "text-embedding-3-small"
	DefaultHashingModel = "hashing-v1"

	// Dimensions
	ONNXDimension    = 768
	OpenAIDimension  = 1536
	HashingDimension = 384

	// Batch limits
	DefaultBatchSize = 32
	MaxBatchSize     = 100
)

// HashingProvider is a deterministic offline embedder. Every word and every
// character trigram of a word is hashed into one of dim buckets; the bucket
// counts are L2-normalized. Texts sharing words or word fragments get a
// positive cosine similarity, which is enough for development and tests.
type HashingProvider struct {
	dim int
}

// NewHashingProvider creates a hashing embedder with dim dimensions
func NewHashingProvider(dim int) (*HashingProvider, error) {
	if dim <= 0 {
		dim = HashingDimension
	}
	if dim < 8 {
		return nil, fmt.Errorf("%w: hashing dimension %d too small", ErrInvalidInput, dim)
	}
	return &HashingProvider{dim: dim}, nil
}

func (h *HashingProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Embedding{
		Vector:    h.embed(req.Text),
		Dimension: h.dim,
		Provider:  ProviderHashing,
		Model:     DefaultHashingModel,
		Hash:      ComputeHash(req.Text),
	}, nil
}

func (h *HashingProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := h.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderHashing,
		Model:      DefaultHashingModel,
	}, nil
}

func (h *HashingProvider) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		// punctuation-only input still needs a non-zero vector
		words = []string{strings.TrimSpace(text)}
	}

	for _, w := range words {
		vec[h.bucket("w:"+w)] += 1.0
		runes := []rune(" " + w + " ")
		for i := 0; i+3 <= len(runes); i++ {
			vec[h.bucket("t:"+string(runes[i:i+3]))] += 0.5
		}
	}
	return vector.Normalize(vec)
}

func (h *HashingProvider) bucket(feature string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(feature))
	return int(f.Sum32() % uint32(h.dim))
}

func (h *HashingProvider) Dimension() int {
	return h.dim
}

func (h *HashingProvider) Provider() string {
	return ProviderHashing
}

func (h *HashingProvider) Model() string {
	return DefaultHashingModel
}

func (h *HashingProvider) Close() error {
	return nil
}
