package nl2sql

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/errs"
	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicGenerator talks to the Anthropic Messages API.
type AnthropicGenerator struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewAnthropicGenerator creates a Messages API client from cfg.
func NewAnthropicGenerator(cfg Config) (*AnthropicGenerator, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "llm api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &AnthropicGenerator{
		client:      anthropic.NewClient(key, opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
	}, nil
}

func (g *AnthropicGenerator) Provider() string { return ProviderAnthropic }
func (g *AnthropicGenerator) Model() string    { return g.model }

// Generate sends prompt as a single user message and returns the first text
// block of the reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := g.temperature
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", generationError(ctx, "anthropic create message", err)
	}

	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil && strings.TrimSpace(*block.Text) != "" {
			return *block.Text, nil
		}
	}
	return "", errs.New(errs.ErrKindGenerationFailed, "model returned an empty response")
}
