// Package nl2sql turns a natural-language question into a single SQL
// statement: it grounds a prompt in the live schema, sends it to a text
// generation model, and normalizes the reply.
package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/errs"
)

// Generator sends a prompt to a text-generation model and returns its raw
// reply. Implementations do not retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
	Model() string
}

// Provider names accepted in configuration.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config selects and configures a Generator.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // optional endpoint override
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

const defaultTimeout = 60 * time.Second

// NewGenerator builds the Generator named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg Config) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "llm api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGeminiGenerator(ctx, cfg)
	case ProviderAnthropic:
		return NewAnthropicGenerator(cfg)
	default:
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unknown llm provider %q", cfg.Provider))
	}
}

// generationError classifies a provider failure.
func generationError(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindGenerationFailed, msg, err)
}
