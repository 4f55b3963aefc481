// Package answer turns a question and its retrieved context into the final
// answer text.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NoInformation is the answer when retrieval found nothing
const NoInformation = "I do not have enough information to answer that."

// Provider names
const (
	ProviderOpenAI     = "openai"
	ProviderExtractive = "extractive"
)

var (
	// ErrGenerationFailed wraps every provider failure
	ErrGenerationFailed = errors.New("answer generation failed")
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrUnsupportedProvider is returned for an unknown provider name
	ErrUnsupportedProvider = errors.New("unsupported answer provider")
)

// Generator phrases an answer from retrieved context
type Generator interface {
	Generate(ctx context.Context, question, info string) (string, error)
	Provider() string
}

// BuildPrompt returns the grounding prompt: the model may only use the
// Information section and should format with markdown.
func BuildPrompt(question, info string) string {
	var b strings.Builder
	b.WriteString(`You are a helpful university knowledge assistant. Your goal is to provide clear, comprehensive, and well-formatted answers to user questions based on the event data provided.

You must answer the question *ONLY* using the information provided in the "Information" section.
If the information is missing or insufficient to answer the question, state that clearly.

When presenting the information, use markdown to improve readability. For example:
- Use headings (` + "`## Title`" + `) for event names.
- Use bolding (` + "`**Label:**`" + `) for field names (like **Date:**, **Venue:**, **Speakers:**).
- Use bullet points (` + "`-`" + `) for lists of items like speakers or coordinators.

**Question:**
`)
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\n**Information:**\n")
	b.WriteString(strings.TrimSpace(info))
	b.WriteString("\n\n**Answer:**\n")
	return b.String()
}

// Extractive answers without a model by returning the context itself
type Extractive struct{}

// NewExtractive creates an Extractive generator
func NewExtractive() *Extractive {
	return &Extractive{}
}

func (e *Extractive) Generate(ctx context.Context, question, info string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info = strings.TrimSpace(info)
	if info == "" {
		return NoInformation, nil
	}
	return "Here is what I found:\n\n" + info, nil
}

func (e *Extractive) Provider() string {
	return ProviderExtractive
}

// Config selects and configures a Generator
type Config struct {
	Provider string // "" = extractive
	Model    string
	BaseURL  string
	APIKey   string
	Options  LLMOptions
}

// New creates the Generator named by cfg.Provider
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "", ProviderExtractive:
		return NewExtractive(), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}
