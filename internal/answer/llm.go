package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/dshills/eventsage/internal/metrics"
	"github.com/dshills/eventsage/internal/retry"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// Defaults for LLMOptions
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTimeout     = 60 * time.Second
	DefaultRPS         = 1.0
	DefaultBurst       = 2
	DefaultTemperature = 0.2
)

// ErrMissingToken is returned when the openai provider has no API key
var ErrMissingToken = fmt.Errorf("%w: llm_api_key is required for the openai provider", types.ErrConfiguration)

// LLMOptions tunes an LLM generator
type LLMOptions struct {
	Timeout     time.Duration // per Generate call, retries included
	RPS         float64       // sustained request rate; <= 0 = DefaultRPS
	Burst       int
	Temperature float64
	Retry       retry.Config
	Logger      logger.Logger
}

func (o *LLMOptions) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RPS <= 0 {
		o.RPS = DefaultRPS
	}
	if o.Burst <= 0 {
		o.Burst = DefaultBurst
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.Retry.MaxRetries == 0 {
		o.Retry = retry.Default()
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
}

// LLM generates answers with a langchaingo model behind a rate limiter,
// retry and a per-call timeout
type LLM struct {
	client   llms.Model
	provider string
	limiter  *rate.Limiter
	opts     LLMOptions
	log      logger.Logger
}

// NewLLM wraps an existing langchaingo model
func NewLLM(client llms.Model, provider string, opts LLMOptions) *LLM {
	opts.applyDefaults()
	return &LLM{
		client:   client,
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		opts:     opts,
		log:      opts.Logger.Named("answer"),
	}
}

// NewOpenAI builds an LLM over any OpenAI-compatible chat endpoint
func NewOpenAI(cfg Config) (*LLM, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingToken
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create openai client: %w", types.ErrConfiguration, err)
	}
	return NewLLM(client, ProviderOpenAI, cfg.Options), nil
}

func (l *LLM) Provider() string {
	return l.provider
}

// Generate sends the grounding prompt and returns the model's answer.
// Running out of the configured timeout yields an error wrapping
// types.ErrRetryable.
func (l *LLM) Generate(ctx context.Context, question, info string) (string, error) {
	if strings.TrimSpace(info) == "" {
		return NoInformation, nil
	}

	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(question, info)),
	}

	text, err := retry.Do(tctx, l.opts.Retry, func() (string, error) {
		if err := l.limiter.Wait(tctx); err != nil {
			return "", retry.Permanent(err)
		}
		resp, err := l.client.GenerateContent(tctx, content, llms.WithTemperature(l.opts.Temperature))
		if err != nil {
			l.log.Warn(tctx, "llm request failed", logger.Error(err))
			return "", err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			return "", retry.Permanent(ErrEmptyResponse)
		}
		return strings.TrimSpace(resp.Choices[0].Content), nil
	})

	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			metrics.RecordLLMRequest(l.provider, metrics.OutcomeTimeout, elapsed)
			return "", fmt.Errorf("%w: %w: timed out after %s", types.ErrRetryable, ErrGenerationFailed, l.opts.Timeout)
		}
		metrics.RecordLLMRequest(l.provider, metrics.OutcomeError, elapsed)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	metrics.RecordLLMRequest(l.provider, metrics.OutcomeSuccess, elapsed)
	return text, nil
}
