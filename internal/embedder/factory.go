package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/eventsage/pkg/logger"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // onnx, openai, hashing
	Model     string
	Dimension int // openai and hashing; onnx reads it from the model

	BaseURL string // openai
	APIKey  string // openai

	ONNXModelPath   string
	ONNXVocabPath   string
	ONNXLibraryPath string

	CacheSize int    // in-memory entries; 0 disables
	CacheDir  string // badger directory; empty disables
	Timeout   time.Duration

	Logger logger.Logger
}

// New builds the configured provider behind a lazy single-load guard and the
// cache/timeout service. Nothing is loaded until first use or Warmup.
func New(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	var loader Loader
	model := cfg.Model

	switch provider {
	case ProviderONNX:
		if model == "" {
			model = DefaultONNXModel
		}
		onnxCfg := ONNXConfig{
			ModelPath:   cfg.ONNXModelPath,
			VocabPath:   cfg.ONNXVocabPath,
			LibraryPath: cfg.ONNXLibraryPath,
			Model:       model,
		}
		loader = func(context.Context) (Embedder, error) {
			return NewONNXProvider(onnxCfg)
		}
	case ProviderOpenAI:
		if model == "" {
			model = DefaultOpenAIModel
		}
		oaCfg := OpenAIConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: model, Dimension: cfg.Dimension}
		loader = func(context.Context) (Embedder, error) {
			return NewOpenAIProvider(oaCfg)
		}
	case ProviderHashing, "":
		provider = ProviderHashing
		model = DefaultHashingModel
		dim := cfg.Dimension
		loader = func(context.Context) (Embedder, error) {
			return NewHashingProvider(dim)
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}

	opts := Options{Timeout: cfg.Timeout, Logger: cfg.Logger.Named("embedder")}
	if cfg.CacheSize > 0 {
		opts.Cache = NewCache(cfg.CacheSize)
	}
	if cfg.CacheDir != "" {
		disk, err := OpenDiskCache(cfg.CacheDir, cfg.Logger)
		if err != nil {
			return nil, err
		}
		opts.Disk = disk
	}

	return NewService(NewLazy(provider, model, loader), opts), nil
}
