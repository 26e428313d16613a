package querygen

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serp-scraper/pkg/perplexity"
)

// PerplexityCompleter completes prompts with Perplexity chat completions.
type PerplexityCompleter struct {
	client perplexity.Client
}

// NewPerplexity creates a Completer using the client's configured model.
func NewPerplexity(client perplexity.Client) *PerplexityCompleter {
	return &PerplexityCompleter{client: client}
}

// Complete implements Completer.
func (c *PerplexityCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	temp := p.Temperature
	maxTokens := p.MaxTokens
	resp, err := c.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "querygen: perplexity")
	}
	return resp.Text(), nil
}
