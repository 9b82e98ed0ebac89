package nl2sql

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/schema"
)

// Translation is the outcome of one question.
type Translation struct {
	SQL      string `json:"sql"`
	Prompt   string `json:"-"`
	Raw      string `json:"-"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Translator composes introspection, prompt building, generation and
// normalization.
type Translator struct {
	gen               Generator
	introspectTimeout time.Duration
}

// NewTranslator wraps gen. A zero introspectTimeout leaves schema reads
// bounded only by the caller's context.
func NewTranslator(gen Generator, introspectTimeout time.Duration) *Translator {
	return &Translator{gen: gen, introspectTimeout: introspectTimeout}
}

// Provider names the model backend, for metrics labels.
func (t *Translator) Provider() string {
	return t.gen.Provider()
}

// Translate inspects db afresh, asks the model, and returns the normalized
// statement. The statement is not validated or executed.
func (t *Translator) Translate(ctx context.Context, db database.DB, question string) (*Translation, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "question is required")
	}

	snap, err := t.inspect(ctx, db)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(db.Dialect(), snap, question)
	raw, err := t.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	sql := Normalize(raw)
	if sql == "" {
		return nil, errs.New(errs.ErrKindGenerationFailed, "model returned no SQL")
	}

	return &Translation{
		SQL:      sql,
		Prompt:   prompt,
		Raw:      raw,
		Provider: t.gen.Provider(),
		Model:    t.gen.Model(),
	}, nil
}

func (t *Translator) inspect(ctx context.Context, db database.DB) (*schema.Snapshot, error) {
	if t.introspectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.introspectTimeout)
		defer cancel()
	}
	return schema.Inspect(ctx, db)
}
