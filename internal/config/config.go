// Package config defines process configuration and its loading layers.
//
// Values come from three layers, lowest precedence first: the defaults in
// New, an optional YAML file, and EVENTSAGE_* environment variables with
// flat keys (EVENTSAGE_DB_PATH -> db_path).
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/dshills/eventsage/internal/ranker"
	"github.com/dshills/eventsage/pkg/logger"
)

// Provider names accepted by the embedder and answer settings
const (
	EmbeddingONNX    = "onnx"
	EmbeddingOpenAI  = "openai"
	EmbeddingHashing = "hashing"

	LLMOpenAI     = "openai"
	LLMExtractive = "extractive"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DBPath is the SQLite database file. ":memory:" is accepted for tests.
	DBPath string `koanf:"db_path"`

	// HTTPAddr configures the HTTP listen address, e.g. ":8080".
	HTTPAddr string `koanf:"http_addr"`

	// AdminToken guards POST /api/add-event. Empty disables the endpoint.
	AdminToken string `koanf:"admin_token"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `koanf:"cors_origins"`

	// Embedding provider: onnx, openai or hashing.
	EmbeddingProvider string        `koanf:"embedding_provider"`
	EmbeddingModel    string        `koanf:"embedding_model"`
	EmbeddingBaseURL  string        `koanf:"embedding_base_url"`
	EmbeddingAPIKey   string        `koanf:"embedding_api_key"`
	EmbeddingDim      int           `koanf:"embedding_dim"`
	EmbeddingTimeout  time.Duration `koanf:"embedding_timeout"`

	// Local ONNX model files.
	ONNXModelPath   string `koanf:"onnx_model_path"`
	ONNXVocabPath   string `koanf:"onnx_vocab_path"`
	ONNXLibraryPath string `koanf:"onnx_library_path"`

	// EmbeddingCacheSize bounds the in-memory embedding cache; 0 disables it.
	EmbeddingCacheSize int `koanf:"embedding_cache_size"`

	// EmbeddingCacheDir enables the persistent badger cache when set.
	EmbeddingCacheDir string `koanf:"embedding_cache_dir"`

	// Answer generator: openai (any OpenAI-compatible endpoint) or extractive.
	LLMProvider string        `koanf:"llm_provider"`
	LLMModel    string        `koanf:"llm_model"`
	LLMBaseURL  string        `koanf:"llm_base_url"`
	LLMAPIKey   string        `koanf:"llm_api_key"`
	LLMTimeout  time.Duration `koanf:"llm_timeout"`
	LLMRPS      float64       `koanf:"llm_rps"`

	// Ranking blend. VectorWeight + LexicalWeight must equal 1.
	VectorWeight     float64 `koanf:"vector_weight"`
	LexicalWeight    float64 `koanf:"lexical_weight"`
	VectorThreshold  float64 `koanf:"vector_threshold"`
	LexicalThreshold float64 `koanf:"lexical_threshold"`

	// DefaultLimit caps hybrid and vector answers unless the question asks for all.
	DefaultLimit int `koanf:"default_limit"`

	// Query cache. A negative size disables it.
	QueryCacheSize int           `koanf:"query_cache_size"`
	QueryCacheTTL  time.Duration `koanf:"query_cache_ttl"`

	// IndexWorkers sets concurrent embedding workers for import and reembed.
	IndexWorkers int `koanf:"index_workers"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		DBPath:             "./eventsage.db",
		HTTPAddr:           ":8080",
		CORSOrigins:        []string{"http://localhost:3000"},
		EmbeddingProvider:  EmbeddingHashing,
		EmbeddingTimeout:   30 * time.Second,
		EmbeddingCacheSize: 1000,
		LLMProvider:        LLMExtractive,
		LLMModel:           "gemini-2.5-flash",
		LLMBaseURL:         "https://generativelanguage.googleapis.com/v1beta/openai/",
		LLMTimeout:         60 * time.Second,
		LLMRPS:             1,
		VectorWeight:       ranker.DefaultVectorWeight,
		LexicalWeight:      ranker.DefaultLexicalWeight,
		VectorThreshold:    ranker.DefaultVectorThreshold,
		LexicalThreshold:   ranker.DefaultLexicalThreshold,
		DefaultLimit:       5,
		QueryCacheSize:     1000,
		QueryCacheTTL:      time.Hour,
		IndexWorkers:       runtime.NumCPU(),
	}
}

// Weights returns the ranking blend
func (c *Config) Weights() ranker.Weights {
	return ranker.Weights{
		Vector:           c.VectorWeight,
		Lexical:          c.LexicalWeight,
		VectorThreshold:  c.VectorThreshold,
		LexicalThreshold: c.LexicalThreshold,
	}
}

// Validate checks the configuration is usable. Every error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return invalid("db_path must not be empty")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return invalid("http_addr must not be empty")
	}

	switch strings.ToLower(c.EmbeddingProvider) {
	case EmbeddingONNX:
		if c.ONNXModelPath == "" || c.ONNXVocabPath == "" {
			return invalid("onnx_model_path and onnx_vocab_path are required for the onnx provider")
		}
	case EmbeddingOpenAI:
		if c.EmbeddingAPIKey == "" {
			return invalid("embedding_api_key is required for the openai provider")
		}
	case EmbeddingHashing:
	default:
		return invalid("unknown embedding_provider %q", c.EmbeddingProvider)
	}
	if c.EmbeddingDim < 0 {
		return invalid("embedding_dim must not be negative")
	}
	if c.EmbeddingTimeout <= 0 {
		return invalid("embedding_timeout must be positive")
	}

	switch strings.ToLower(c.LLMProvider) {
	case LLMOpenAI:
		if c.LLMAPIKey == "" {
			return invalid("llm_api_key is required for the openai provider")
		}
	case LLMExtractive:
	default:
		return invalid("unknown llm_provider %q", c.LLMProvider)
	}
	if c.LLMTimeout <= 0 {
		return invalid("llm_timeout must be positive")
	}
	if c.LLMRPS <= 0 {
		return invalid("llm_rps must be positive")
	}

	if err := c.Weights().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.DefaultLimit <= 0 {
		return invalid("default_limit must be positive")
	}
	if c.QueryCacheTTL <= 0 {
		return invalid("query_cache_ttl must be positive")
	}
	if c.IndexWorkers <= 0 {
		return invalid("index_workers must be positive")
	}
	return nil
}
