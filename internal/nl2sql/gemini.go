package nl2sql

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/errs"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiGenerator talks to the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGeminiGenerator creates a Gemini API client from cfg.
func NewGeminiGenerator(ctx context.Context, cfg Config) (*GeminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindGenerationFailed, "create gemini client", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GeminiGenerator{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
	}, nil
}

func (g *GeminiGenerator) Provider() string { return ProviderGemini }
func (g *GeminiGenerator) Model() string    { return g.model }

// Generate sends prompt as a single user turn and returns the reply text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", generationError(ctx, "gemini generate content", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errs.New(errs.ErrKindGenerationFailed, "model returned an empty response")
	}
	return text, nil
}
