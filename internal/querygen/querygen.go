// Package querygen turns a free-text topic description into one natural,
// long-tail search query using a chat language model.
package querygen

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Provider names accepted by the llm.provider setting.
const (
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
	ProviderOllama     = "ollama"
)

// Generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 16
)

const systemPrompt = "You are a helpful AI assistant."

const instruction = "Generate a single, natural-sounding medium/long-tail search query based on the provided description. " +
	"The query should be phrased like how a user would type it into Google, using complete phrases, and should be between 8-12 tokens. " +
	"Avoid lists of keywords or unnatural phrasing. " +
	"Only respond with the query itself.\n\n" +
	"Description:\n\n"

// Prompt is one single-turn chat completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer runs a chat completion and returns the raw assistant text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// BuildPrompt builds the query-generation prompt for description.
func BuildPrompt(description string) Prompt {
	return Prompt{
		System:      systemPrompt,
		User:        instruction + description,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

var cleaner = strings.NewReplacer(`"`, "", "'", "", "-", " ", "_", " ")

// Clean strips quotes, turns dashes and underscores into spaces and trims.
func Clean(raw string) string {
	return strings.TrimSpace(cleaner.Replace(raw))
}

// Option configures a Generator.
type Option func(*Generator)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		if t > 0 {
			g.temperature = t
		}
	}
}

// WithMaxTokens overrides the output token cap.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// Generator produces search queries from descriptions.
type Generator struct {
	completer   Completer
	temperature float64
	maxTokens   int
}

// New creates a Generator backed by completer.
func New(completer Completer, opts ...Option) *Generator {
	g := &Generator{
		completer:   completer,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns one cleaned query, or "" when the model produced nothing
// usable. Provider failures are returned as errors.
func (g *Generator) Generate(ctx context.Context, description string) (string, error) {
	p := BuildPrompt(description)
	p.Temperature = g.temperature
	p.MaxTokens = g.maxTokens

	start := time.Now()
	raw, err := g.completer.Complete(ctx, p)
	if err != nil {
		return "", eris.Wrap(err, "querygen: complete")
	}

	query := Clean(raw)
	zap.L().Debug("querygen: generated",
		zap.String("raw", raw),
		zap.String("query", query),
		zap.Duration("elapsed", time.Since(start)),
	)
	return query, nil
}
